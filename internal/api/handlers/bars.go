package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/services"
)

type BarsHandler struct {
	service *services.AnalysisService
}

// SaveBarsRequest is the body of PUT /api/v1/bars/:symbol.
type SaveBarsRequest struct {
	Bars []BarDTO `json:"bars" binding:"required,min=1,dive"`
}

// SaveBarsResponse acknowledges stored bars.
type SaveBarsResponse struct {
	Symbol string `json:"symbol"`
	Stored int    `json:"stored"`
	Source string `json:"data_source"`
}

func NewBarsHandler(service *services.AnalysisService) *BarsHandler {
	return &BarsHandler{
		service: service,
	}
}

// PutBars stores bars for a symbol in the configured source
func (h *BarsHandler) PutBars(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	var req SaveBarsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	series, err := toSeries(req.Bars)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.service.SaveBars(c.Request.Context(), symbol, series); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveBarsResponse{Symbol: symbol, Stored: len(series), Source: h.service.SourceName()})
}
