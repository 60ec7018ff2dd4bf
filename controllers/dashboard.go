package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablebook-backend/services"
)

type OverviewProvider interface {
	Overview(ctx context.Context) (services.DashboardOverview, error)
}

type DashboardController struct {
	overview OverviewProvider
	log      zerolog.Logger
}

func NewDashboardController(overview OverviewProvider, log zerolog.Logger) *DashboardController {
	return &DashboardController{overview: overview, log: log.With().Str("component", "dashboard_controller").Logger()}
}

func (dc *DashboardController) GetDashboardOverview(c *gin.Context) {
	overview, err := dc.overview.Overview(c.Request.Context())
	if err != nil {
		respondServiceError(c, dc.log, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}
