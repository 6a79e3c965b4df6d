package server

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/harvestlabs/grantscout/internal/index"
	"github.com/harvestlabs/grantscout/internal/research"
	"github.com/harvestlabs/grantscout/internal/store"
)

// ReportsHandler serves the authenticated report archive
type ReportsHandler struct {
	Store *store.Store
	Index *index.Index
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/:id", h.get)
	g.GET("/:id/markdown", h.markdown)
}

func (h *ReportsHandler) list(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	reports, err := h.Store.ListReports(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if reports == nil {
		reports = []store.ReportRecord{}
	}
	return c.JSON(http.StatusOK, reports)
}

func (h *ReportsHandler) get(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	rec, err := h.Store.GetReport(c.Request().Context(), userID, c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *ReportsHandler) markdown(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	rec, err := h.Store.GetReport(c.Request().Context(), userID, c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(research.RenderMarkdown(rec.Report)))
}

func (h *ReportsHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k := 10
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			k = n
		}
	}
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search index not configured")
	}
	hits, err := h.Index.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	return c.JSON(http.StatusOK, hits)
}
