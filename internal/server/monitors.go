package server

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/harvestlabs/grantscout/internal/store"
)

// MonitorsHandler manages saved farm queries re-run on a schedule
type MonitorsHandler struct {
	Store *store.Store
}

func (h *MonitorsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("/:id", h.delete)
}

func (h *MonitorsHandler) create(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	var req MonitorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if req.CronExpr != "@daily" && req.CronExpr != "@hourly" {
		if _, err := cronexpr.Parse(req.CronExpr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron expression")
		}
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	id, err := h.Store.CreateMonitor(c.Request().Context(), store.Monitor{
		UserID:   userID,
		Query:    req.Query,
		FarmType: req.FarmType,
		Location: req.Location,
		CronExpr: req.CronExpr,
		Enabled:  enabled,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *MonitorsHandler) list(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	monitors, err := h.Store.ListMonitors(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if monitors == nil {
		monitors = []store.Monitor{}
	}
	return c.JSON(http.StatusOK, monitors)
}

func (h *MonitorsHandler) delete(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	err := h.Store.DeleteMonitor(c.Request().Context(), userID, c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "monitor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
