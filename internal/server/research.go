package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlabs/grantscout/config"
	"github.com/harvestlabs/grantscout/internal/fetch"
	"github.com/harvestlabs/grantscout/internal/index"
	"github.com/harvestlabs/grantscout/internal/llm"
	"github.com/harvestlabs/grantscout/internal/research"
	"github.com/harvestlabs/grantscout/internal/search"
	"github.com/harvestlabs/grantscout/internal/store"
	"github.com/harvestlabs/grantscout/internal/telemetry"
)

// Runner executes one research run, pushing progress as it happens
type Runner interface {
	Run(ctx context.Context, req research.Request, emit research.ProgressEmitter) (research.Report, error)
}

// RunnerFactory builds a Runner with per-request provider keys. Empty keys
// fall back to the configured process-wide keys.
type RunnerFactory func(openaiKey, searchKey, modelID string) (Runner, error)

// ResearchHandler serves the streaming grant research endpoint
type ResearchHandler struct {
	Cfg       *config.Config
	Secret    []byte
	Store     *store.Store // nil disables report archiving
	Index     *index.Index // nil disables archive indexing
	NewRunner RunnerFactory
	Logger    *log.Logger
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/grants", h.researchGrants)
}

// DefaultRunnerFactory wires the real pipeline from configuration. When a
// redis client is supplied, search results are served through a TTL cache.
func DefaultRunnerFactory(cfg *config.Config, tel *telemetry.Telemetry, rdb *redis.Client, logger *log.Logger) RunnerFactory {
	return func(openaiKey, searchKey, modelID string) (Runner, error) {
		provider, err := llm.NewProvider(cfg.LLM, openaiKey)
		if err != nil {
			return nil, err
		}
		searcher, err := search.NewProvider(cfg.Search, searchKey)
		if err != nil {
			return nil, err
		}
		if rdb != nil {
			searcher = search.NewCachedProvider(searcher, rdb, cfg.Search.CacheTTL, logger)
		}
		var fetcher research.PageFetcher
		if cfg.Fetch.Enabled {
			fetcher = fetch.Fetcher{Timeout: cfg.Fetch.Timeout, MaxChars: cfg.Fetch.MaxChars}
		}
		return research.NewEngine(cfg, provider, searcher, fetcher, tel, logger, modelID), nil
	}
}

func (h *ResearchHandler) researchGrants(c echo.Context) error {
	var req research.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	openaiKey := cookieValue(c, "openai_api_key")
	searchKey := cookieValue(c, "firecrawl_api_key")
	if h.Cfg.Server.RequireAPIKeys && (openaiKey == "" || searchKey == "") {
		return echo.NewHTTPError(http.StatusUnauthorized, "API keys are required but not provided")
	}

	runner, err := h.NewRunner(openaiKey, searchKey, req.ModelID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	userID := h.userFromAuthCookie(c)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	ctx := c.Request().Context()
	events := make(chan StreamFrame, 16)
	go func() {
		defer close(events)
		report, err := runner.Run(ctx, req, research.EmitterFunc(func(msg string) {
			events <- StreamFrame{Progress: msg}
		}))
		if err != nil {
			events <- StreamFrame{Error: err.Error()}
			return
		}
		h.archive(ctx, userID, req, report)
		events <- StreamFrame{Done: true, Report: &report}
	}()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			h.logf("stream write failed: %v", err)
			// drain so the pipeline goroutine can finish and close
			for range events {
			}
			break
		}
		flusher.Flush()
	}
	return nil
}

func (h *ResearchHandler) archive(ctx context.Context, userID string, req research.Request, report research.Report) {
	if h.Store == nil || userID == "" {
		return
	}
	id, err := h.Store.SaveReport(ctx, userID, req, report)
	if err != nil {
		h.logf("report archive failed: %v", err)
		return
	}
	if h.Index != nil {
		if err := h.Index.IndexReport(id, report); err != nil {
			h.logf("report indexing failed: %v", err)
		}
	}
}

// userFromAuthCookie resolves the optional authenticated user. The research
// endpoint itself is open; auth only enables archiving.
func (h *ResearchHandler) userFromAuthCookie(c echo.Context) string {
	if len(h.Secret) == 0 {
		return ""
	}
	ck, err := c.Cookie("auth")
	if err != nil || ck.Value == "" {
		return ""
	}
	parsed, err := jwt.Parse(ck.Value, func(t *jwt.Token) (interface{}, error) { return h.Secret, nil })
	if err != nil || !parsed.Valid {
		return ""
	}
	if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
		if sub, ok := claims["sub"].(string); ok {
			return sub
		}
	}
	return ""
}

func (h *ResearchHandler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
