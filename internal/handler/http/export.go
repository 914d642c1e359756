package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/finsearch/internal/export"
	"github.com/utafrali/finsearch/pkg/httputil"
	"github.com/utafrali/finsearch/pkg/pagination"
	"github.com/utafrali/finsearch/pkg/validator"
)

// ExportHandler serves the catalog feed the search provider indexes.
type ExportHandler struct {
	orchestrator *export.Orchestrator
	logger       *slog.Logger
}

// NewExportHandler creates a new export HTTP handler.
func NewExportHandler(orchestrator *export.Orchestrator, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// --- Request DTOs ---

// FeedRequest identifies the shop whose catalog is exported.
type FeedRequest struct {
	ShopKey string `validate:"required,alphanum,max=64"`
}

// --- Handlers ---

// Feed handles GET /findologic?shopkey=&start=&count=
func (h *ExportHandler) Feed(w http.ResponseWriter, r *http.Request) {
	req := FeedRequest{ShopKey: strings.TrimSpace(r.URL.Query().Get("shopkey"))}
	if err := validator.Validate(req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	win, ok := pagination.WindowFromRequest(r, "start", "count")
	if !ok {
		writeInvalidParameter(w, "start and count must be non-negative integers")
		return
	}

	batch, err := h.orchestrator.ExportPage(r.Context(), req.ShopKey, win)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := httputil.WriteXML(w, http.StatusOK, export.NewFeed(batch)); err != nil {
		h.logger.ErrorContext(r.Context(), "writing export feed failed",
			slog.String("shop_key", req.ShopKey),
			slog.String("error", err.Error()),
		)
	}
}
