package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/stockcast/internal/middleware"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/services"
	"github.com/irfndi/stockcast/pkg/interfaces"
)

type AnalysisHandler struct {
	service *services.AnalysisService
}

// StockResponse is the indicator table, latest-bar stats and consensus signal of a symbol.
// Signals is null when the series is too short to evaluate.
type StockResponse struct {
	Symbol     string                     `json:"symbol"`
	Data       []IndicatorRowDTO          `json:"data"`
	Stats      *interfaces.MarketSnapshot `json:"stats"`
	Signals    *SignalDTO                 `json:"signals"`
	Forecast   *ForecastDTO               `json:"forecast,omitempty"`
	DataSource string                     `json:"data_source"`
	Windows    models.IndicatorWindows    `json:"windows"`
}

// AnalysisRequest is the body of POST /api/v1/analysis.
type AnalysisRequest struct {
	Symbol        string   `json:"symbol"`
	Strategy      string   `json:"strategy"`
	Bars          []BarDTO `json:"bars" binding:"required,dive"`
	ForecastModel string   `json:"forecast_model"`
	Horizon       int      `json:"horizon"`
}

func NewAnalysisHandler(service *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
	}
}

func newStockResponse(result *services.AnalysisResult) StockResponse {
	return StockResponse{
		Symbol:     result.Symbol,
		Data:       indicatorTable(result.Frame),
		Stats:      result.Snapshot,
		Signals:    newSignalDTO(result.Signals),
		Forecast:   newForecastDTO(result.Forecast),
		DataSource: result.Source,
		Windows:    result.Frame.Windows,
	}
}

func (h *AnalysisHandler) strategy(value string) (models.Strategy, error) {
	return models.ParseStrategy(value, h.service.DefaultStrategy())
}

// GetStock analyses the stored bars of a symbol
func (h *AnalysisHandler) GetStock(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	strategy, err := h.strategy(c.Query("strategy"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	middleware.AddSpanAttribute(c, "symbol", symbol)

	result, err := h.service.AnalyzeSymbol(c.Request.Context(), symbol, strategy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStockResponse(result))
}

// PostAnalysis analyses bars supplied in the request body
func (h *AnalysisHandler) PostAnalysis(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	strategy, err := h.strategy(req.Strategy)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var model models.ModelType
	if req.ForecastModel != "" {
		if model, err = models.ParseModelType(req.ForecastModel); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	series, err := toSeries(req.Bars)
	if err != nil {
		respondError(c, err)
		return
	}

	symbol := models.NormalizeSymbol(req.Symbol)
	middleware.AddSpanAttribute(c, "symbol", symbol)
	result, err := h.service.Analyze(c.Request.Context(), services.AnalysisRequest{
		Symbol:        symbol,
		Strategy:      strategy,
		Series:        series,
		ForecastModel: model,
		Horizon:       req.Horizon,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStockResponse(result))
}
