package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/stockcast/internal/middleware"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/services"
)

type PredictionHandler struct {
	analysis    *services.AnalysisService
	predictions *services.PredictionService
}

// PredictionResponse is a forecast for one symbol.
type PredictionResponse struct {
	Symbol string `json:"symbol"`
	*ForecastDTO
}

// PredictionRequest is the body of POST /api/v1/predict.
type PredictionRequest struct {
	Symbol  string   `json:"symbol"`
	Model   string   `json:"model"`
	Horizon int      `json:"horizon"`
	Bars    []BarDTO `json:"bars" binding:"required,dive"`
}

func NewPredictionHandler(analysis *services.AnalysisService) *PredictionHandler {
	return &PredictionHandler{
		analysis:    analysis,
		predictions: analysis.Predictions(),
	}
}

// GetPrediction forecasts from the stored bars of a symbol
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	model, err := models.ParseModelType(c.Query("model"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	horizon := 0
	if raw := c.Query("horizon"); raw != "" {
		if horizon, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "horizon must be an integer")
			return
		}
	}
	middleware.AddSpanAttribute(c, "symbol", symbol)
	middleware.AddSpanAttribute(c, "forecast.model", string(model))

	forecast, err := h.analysis.PredictSymbol(c.Request.Context(), symbol, model, horizon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PredictionResponse{Symbol: symbol, ForecastDTO: newForecastDTO(forecast)})
}

// PostPrediction forecasts from bars supplied in the request body
func (h *PredictionHandler) PostPrediction(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	model, err := models.ParseModelType(req.Model)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	series, err := toSeries(req.Bars)
	if err != nil {
		respondError(c, err)
		return
	}

	symbol := models.NormalizeSymbol(req.Symbol)
	forecast, err := h.predictions.Predict(c.Request.Context(), series, model, req.Horizon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PredictionResponse{Symbol: symbol, ForecastDTO: newForecastDTO(forecast)})
}
