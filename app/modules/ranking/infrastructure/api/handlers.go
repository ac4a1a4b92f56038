// Package rankingapi serves the ranking read API over HTTP.
package rankingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	rankingservice "github.com/Black-And-White-Club/maprank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingexport "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/export"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Queries is the read side of the ranking service.
type Queries interface {
	rankingexport.Source
	ActiveMap() rankingdomain.MapID
	GetPlayerRank(ctx context.Context, participant rankingdomain.ParticipantID) (rankingdomain.GlobalRow, error)
	GetMapRecord(ctx context.Context, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (rankingdomain.MapRow, error)
}

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxChartTop     = 50
)

// HTTPHandlers adapts Queries to JSON and file responses.
type HTTPHandlers struct {
	queries Queries
	logger  *slog.Logger
	palette rankingexport.Palette
	now     func() time.Time
}

func NewHTTPHandlers(queries Queries, logger *slog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		queries: queries,
		logger:  logger,
		palette: rankingexport.DefaultPalette,
		now:     time.Now,
	}
}

type mapsResponse struct {
	ActiveMap rankingdomain.MapID   `json:"active_map,omitempty"`
	Maps      []rankingdomain.MapID `json:"maps"`
}

func (h *HTTPHandlers) ListMaps(w http.ResponseWriter, r *http.Request) {
	ids, err := h.queries.ListMaps(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []rankingdomain.MapID{}
	}
	h.writeJSON(w, r, http.StatusOK, mapsResponse{ActiveMap: h.queries.ActiveMap(), Maps: ids})
}

func (h *HTTPHandlers) MapLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.queries.GetMapLeaderboard(r.Context(), rankingdomain.MapID(chi.URLParam(r, "mapID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if board.Rows == nil {
		board.Rows = []rankingdomain.MapRow{}
	}
	h.writeJSON(w, r, http.StatusOK, board)
}

func (h *HTTPHandlers) MapRecord(w http.ResponseWriter, r *http.Request) {
	row, err := h.queries.GetMapRecord(r.Context(),
		rankingdomain.MapID(chi.URLParam(r, "mapID")),
		rankingdomain.ParticipantID(chi.URLParam(r, "participantID")),
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, row)
}

func (h *HTTPHandlers) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.queries.GetGlobalLeaderboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if board.Rows == nil {
		board.Rows = []rankingdomain.GlobalRow{}
	}
	h.writeJSON(w, r, http.StatusOK, board)
}

func (h *HTTPHandlers) PlayerRank(w http.ResponseWriter, r *http.Request) {
	row, err := h.queries.GetPlayerRank(r.Context(), rankingdomain.ParticipantID(chi.URLParam(r, "participantID")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, row)
}

func (h *HTTPHandlers) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	st, err := rankingexport.Collect(r.Context(), h.queries)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := rankingexport.WriteXLSX(&buf, st); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, contentTypeXLSX, "xlsx", buf.Bytes())
}

func (h *HTTPHandlers) ExportPNG(w http.ResponseWriter, r *http.Request) {
	top := rankingexport.DefaultChartTop
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxChartTop {
			h.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("top must be between 1 and %d", maxChartTop))
			return
		}
		top = n
	}

	board, err := h.queries.GetGlobalLeaderboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	img, err := rankingexport.RenderChart(board, top, h.palette)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, "image/png", "png", img)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *HTTPHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rankingservice.ErrNotRanked):
		h.writeError(w, r, http.StatusNotFound, "not ranked")
	case errors.Is(err, rankingservice.ErrMapIDRequired):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.logger.ErrorContext(r.Context(), "Ranking API request failed",
			attr.String("path", r.URL.Path),
			attr.String("request_id", middleware.GetReqID(r.Context())),
			attr.Error(err),
		)
		h.writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, errorResponse{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

func (h *HTTPHandlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write response", attr.Error(err))
	}
}

func (h *HTTPHandlers) writeFile(w http.ResponseWriter, contentType, ext string, body []byte) {
	name := fmt.Sprintf("standings-%s.%s", h.now().UTC().Format("20060102-150405"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
