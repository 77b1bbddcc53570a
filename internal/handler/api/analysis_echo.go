package api

import (
	"errors"

	models "LiqFlow/internal/domain/models"
	"LiqFlow/internal/usecase"
	xhttp "LiqFlow/pkg/http"
	xlogger "LiqFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AnalysisEchoHandler exposes the latest run's results over HTTP.
type AnalysisEchoHandler struct {
	logger *xlogger.Logger
	view   *usecase.ResultsView
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, view *usecase.ResultsView) *AnalysisEchoHandler {
	return &AnalysisEchoHandler{logger: logger, view: view}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/runs/latest", h.LatestRun)
	g.GET("/correlations", h.Correlations)
	g.GET("/model", h.Model)
	g.GET("/backtest", h.Backtest)
	g.GET("/flows", h.Flows)
}

func (h *AnalysisEchoHandler) LatestRun(c echo.Context) error {
	run, err := h.view.Latest(c.Request().Context())
	if err != nil {
		return h.viewError(c, "latest run", err)
	}
	// Symbol payloads are large; the summary endpoint strips them.
	summary := map[string]interface{}{
		"run_id":      run.RunID,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
		"symbols":     symbolNames(run),
		"failures":    run.Failures,
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *AnalysisEchoHandler) Correlations(c echo.Context) error {
	req := &models.CorrelationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sa, err := h.view.Symbol(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.viewError(c, "correlations", err)
	}

	switch req.Kind {
	case "lagged":
		if sa.LaggedMix == nil {
			return xhttp.NotFoundResponse(c, "no lagged ranking for symbol")
		}
		return xhttp.SuccessResponse(c, truncateTable(*sa.LaggedMix, req.Limit))
	case "regime":
		if len(sa.ByRegime) == 0 {
			return xhttp.NotFoundResponse(c, "no regime ranking for symbol")
		}
		return xhttp.SuccessResponse(c, truncateTables(sa.ByRegime, req.Limit))
	case "horizon":
		if len(sa.ByHorizon) == 0 {
			return xhttp.NotFoundResponse(c, "no horizon ranking for symbol")
		}
		return xhttp.SuccessResponse(c, truncateTables(sa.ByHorizon, req.Limit))
	default:
		if sa.Plain == nil {
			return xhttp.NotFoundResponse(c, "no correlation ranking for symbol")
		}
		return xhttp.SuccessResponse(c, truncateTable(*sa.Plain, req.Limit))
	}
}

func (h *AnalysisEchoHandler) Model(c echo.Context) error {
	req := &models.ModelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sa, err := h.view.Symbol(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.viewError(c, "model", err)
	}
	if sa.Model == nil {
		return xhttp.NotFoundResponse(c, "no model report for symbol")
	}

	report := *sa.Model
	if req.TopN > 0 && len(report.Importance) > req.TopN {
		report.Importance = report.Importance[:req.TopN]
	}
	if req.Compare {
		return xhttp.SuccessResponse(c, map[string]interface{}{
			"report":     report,
			"comparison": sa.Comparison,
		})
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *AnalysisEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sa, err := h.view.Symbol(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.viewError(c, "backtest", err)
	}
	if sa.Backtest == nil {
		return xhttp.NotFoundResponse(c, "no backtest for symbol")
	}

	res := *sa.Backtest
	if !req.Rows {
		res.Rows = nil
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Flows(c echo.Context) error {
	req := &models.FlowsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sa, err := h.view.Symbol(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.viewError(c, "flows", err)
	}
	if sa.Flows == nil && len(sa.AuctionImpact) == 0 && len(sa.Quartiles) == 0 {
		return xhttp.NotFoundResponse(c, "no flow analysis for symbol")
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"flows":          sa.Flows,
		"auction_impact": sa.AuctionImpact,
		"quartiles":      sa.Quartiles,
	})
}

func (h *AnalysisEchoHandler) viewError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrNoRuns):
		return xhttp.NotFoundResponse(c, "no completed runs yet")
	case errors.Is(err, usecase.ErrSymbolNotFound):
		return xhttp.NotFoundResponse(c, err.Error())
	default:
		h.logger.Error(op+" view error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

func symbolNames(run *models.RunOutcome) []string {
	out := make([]string, 0, len(run.Symbols))
	for s := range run.Symbols {
		out = append(out, s)
	}
	return out
}

func truncateTable(t models.CorrelationTable, limit int) models.CorrelationTable {
	if limit > 0 && len(t.Entries) > limit {
		t.Entries = t.Entries[:limit]
	}
	return t
}

func truncateTables(in map[string]models.CorrelationTable, limit int) map[string]models.CorrelationTable {
	if limit <= 0 {
		return in
	}
	out := make(map[string]models.CorrelationTable, len(in))
	for k, t := range in {
		out[k] = truncateTable(t, limit)
	}
	return out
}
