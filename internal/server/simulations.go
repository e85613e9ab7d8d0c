package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/config"
	"github.com/rpgo/lifetime-planner/internal/domain"
	"github.com/rpgo/lifetime-planner/internal/output"
)

// statusClientClosedRequest is reported when the caller went away mid-run.
const statusClientClosedRequest = 499

// SimulationHandler serves scenario validation and Monte Carlo runs.
type SimulationHandler struct {
	Engine              *calculation.Engine
	DefaultTrajectories int
	// MaxTrajectories caps a single request; zero disables the cap.
	MaxTrajectories int
	// Timeout bounds one run; zero leaves only the request context.
	Timeout time.Duration
	Logger  *zap.Logger
}

func (h *SimulationHandler) Register(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/simulations", h.simulate)
	v1.POST("/scenarios/validate", h.validate)
	v1.GET("/formats", h.formats)
}

type simulationRequest struct {
	Scenario            *domain.ScenarioDefinition `json:"scenario" binding:"required"`
	Trajectories        int                        `json:"trajectories"`
	Seed                int64                      `json:"seed"`
	IncludeTrajectories bool                       `json:"include_trajectories"`
	// Format selects a registered output formatter; empty means the JSON envelope.
	Format string `json:"format"`
}

func (h *SimulationHandler) simulate(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	var req simulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}

	n := req.Trajectories
	if n == 0 {
		n = h.DefaultTrajectories
	}
	if h.MaxTrajectories > 0 && n > h.MaxTrajectories {
		Error(c, http.StatusBadRequest, fmt.Sprintf("trajectories must not exceed %d", h.MaxTrajectories), nil)
		return
	}

	var formatter output.Formatter
	if req.Format != "" {
		if formatter = output.GetFormatterByName(req.Format); formatter == nil {
			Error(c, http.StatusBadRequest, output.UnsupportedFormatError(req.Format).Error(), nil)
			return
		}
	}

	config.ApplyDefaults(req.Scenario)
	opts := h.Engine.Options()
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	opts.KeepTrajectories = req.IncludeTrajectories || (formatter != nil && formatter.Name() == "detailed-csv")

	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Engine.WithOptions(opts).Run(ctx, req.Scenario, n)
	if err != nil {
		h.fail(c, err)
		return
	}

	if formatter != nil && formatter.Name() != "json" {
		data, err := formatter.Format(res)
		if err != nil {
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		c.Data(http.StatusOK, contentType(formatter), data)
		return
	}
	Ok(c, res, map[string]any{"run_id": res.RunID, "seed": res.Seed})
}

// validate accepts a bare scenario as JSON or YAML.
func (h *SimulationHandler) validate(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	sc, err := config.NewScenarioParser().Decode(body)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Engine.Validate(c.Request.Context(), sc); err != nil {
		h.fail(c, err)
		return
	}
	Ok(c, gin.H{"valid": true, "name": sc.Name}, nil)
}

func (h *SimulationHandler) formats(c *gin.Context) {
	Ok(c, gin.H{
		"formats": output.AvailableFormatterNames(),
		"aliases": output.AvailableFormatAliases(),
	}, nil)
}

// fail maps engine errors onto HTTP statuses.
func (h *SimulationHandler) fail(c *gin.Context, err error) {
	var (
		verr *calculation.ValidationError
		berr *calculation.BracketError
	)
	switch {
	case calculation.IsCancelled(err) && errors.Is(err, context.DeadlineExceeded):
		Error(c, http.StatusServiceUnavailable, "simulation timed out", nil)
	case calculation.IsCancelled(err):
		Error(c, statusClientClosedRequest, "simulation cancelled", nil)
	case errors.As(err, &berr):
		h.logError("tax data rejected", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	case errors.As(err, &verr):
		Error(c, http.StatusBadRequest, "scenario validation failed", map[string]any{"errors": verr.Errors})
	case errors.Is(err, calculation.ErrDataUnavailable):
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		h.logError("simulation failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}

func (h *SimulationHandler) logError(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, zap.Error(err))
	}
}

func contentType(f output.Formatter) string {
	switch f.Name() {
	case "html":
		return "text/html; charset=utf-8"
	case "csv", "detailed-csv":
		return "text/csv; charset=utf-8"
	case "json":
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
