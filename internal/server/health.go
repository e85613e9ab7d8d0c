package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RMDTableSource is the readiness dependency: the engine cannot run until an
// RMD table resolves.
type RMDTableSource interface {
	FactorForAge(ctx context.Context, age int) (decimal.Decimal, error)
	StartAge() int
}

type HealthHandler struct {
	RMD RMDTableSource
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.RMD == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "rmd_missing"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if _, err := h.RMD.FactorForAge(ctx, h.RMD.StartAge()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "rmd_unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
