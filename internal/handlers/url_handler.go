package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/emadnahed/linkguard/internal/middleware"
	"github.com/emadnahed/linkguard/internal/services"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// maxShortenBody bounds the request body of POST /shorten.
const maxShortenBody = 16 << 10

// ShortenRequest represents the request body for creating a short URL.
type ShortenRequest struct {
	URL string `json:"url"`
}

// ShortenResponse represents the response for a successfully created short URL.
type ShortenResponse struct {
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	CreatedAt   string `json:"created_at"`
}

// StatsResponse represents the response for GET /stats/{code}.
type StatsResponse struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	CreatedAt   string `json:"created_at"`
	AccessCount int64  `json:"access_count"`
}

// URLHandler handles the shorten and stats endpoints.
type URLHandler struct {
	service services.URLService
	log     *logger.Logger
}

// NewURLHandler creates a new URLHandler.
func NewURLHandler(svc services.URLService, log *logger.Logger) *URLHandler {
	return &URLHandler{service: svc, log: log}
}

// Shorten handles POST /shorten. The rate limit is applied by middleware
// before this runs, so invalid requests still count against the client.
func (h *URLHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxShortenBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res, err := h.service.Shorten(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ShortenResponse{
		ShortCode:   res.ShortCode,
		ShortURL:    res.ShortURL,
		OriginalURL: res.OriginalURL,
		CreatedAt:   res.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Stats handles GET /stats/{code}. It does not count as an access.
func (h *URLHandler) Stats(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Stats(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		ShortCode:   m.Code,
		OriginalURL: m.Target,
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
		AccessCount: m.AccessCount,
	})
}

func (h *URLHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapErrorToResponse(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}
