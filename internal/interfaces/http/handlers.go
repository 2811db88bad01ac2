package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkweli/amlscreen/internal/application/registry"
	"github.com/mkweli/amlscreen/internal/application/screening"
	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// Screener runs one query; *screening.Matcher satisfies it.
type Screener interface {
	Screen(ctx context.Context, q screening.Query) (*screening.Result, error)
}

// BatchScreener runs a client batch; *screening.Orchestrator satisfies it.
type BatchScreener interface {
	ScreenBatch(ctx context.Context, rows []screening.Row) (*screening.BatchResult, error)
}

// RepositoryService is the reload/status surface; *registry.Repository
// satisfies it.
type RepositoryService interface {
	Reload(ctx context.Context, forced ...types.SourceList) (*registry.ReloadSummary, error)
	Status() registry.Status
	InvalidateSnapshot() error
}

// Handler carries the request handlers' dependencies.
type Handler struct {
	cfg      *config.Config
	screener Screener
	batch    BatchScreener
	repo     RepositoryService
	logger   logging.Logger
}

func NewHandler(cfg *config.Config, screener Screener, batch BatchScreener, repo RepositoryService, logger logging.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		screener: screener,
		batch:    batch,
		repo:     repo,
		logger:   logger.Named("handler"),
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps an application error onto its HTTP status.  Internal
// detail is logged, never returned to the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", logging.String("path", c.FullPath()), logging.Err(err))
		c.JSON(status, errorBody{Code: code.String(), Message: "internal error"})
		return
	}
	c.JSON(status, errorBody{Code: code.String(), Message: err.Error()})
}

// Screen handles POST /api/v1/screen.
func (h *Handler) Screen(c *gin.Context) {
	var q screening.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		h.writeError(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid request body"))
		return
	}
	res, err := h.screener.Screen(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ScreenBatch handles POST /api/v1/screen/batch.
func (h *Handler) ScreenBatch(c *gin.Context) {
	var req struct {
		Rows []screening.Row `json:"rows"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid request body"))
		return
	}
	res, err := h.batch.ScreenBatch(c.Request.Context(), req.Rows)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reload handles POST /api/v1/reload.  "?forced=UN,OFAC" reparses the
// named sources even when their files are unchanged; "?forced=all"
// reparses everything.  A reload already in progress answers 409.
func (h *Handler) Reload(c *gin.Context) {
	forced, err := parseForced(c.Query("forced"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if h.cfg.Server.ReloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Server.ReloadTimeout)
		defer cancel()
	}

	summary, err := h.repo.Reload(ctx, forced...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseForced(raw string) ([]types.SourceList, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.EqualFold(raw, "all") {
		return types.AllSources, nil
	}
	var out []types.SourceList
	for _, part := range strings.Split(raw, ",") {
		src, err := types.ParseSourceList(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid forced source")
		}
		out = append(out, src)
	}
	return out, nil
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.repo.Status())
}

// InvalidateSnapshot handles DELETE /api/v1/snapshot.
func (h *Handler) InvalidateSnapshot(c *gin.Context) {
	if err := h.repo.InvalidateSnapshot(); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Healthz reports liveness plus data readiness.  The process is healthy
// even before the first load; "ready" tells the operator whether queries
// can produce meaningful answers yet.
func (h *Handler) Healthz(c *gin.Context) {
	st := h.repo.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"ready":  st.Ready,
	})
}
