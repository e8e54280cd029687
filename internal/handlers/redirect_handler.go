package handlers

import (
	"net/http"

	"github.com/emadnahed/linkguard/internal/middleware"
	"github.com/emadnahed/linkguard/internal/services"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// RedirectHandler handles short code redirects.
type RedirectHandler struct {
	service services.RedirectService
	log     *logger.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(svc services.RedirectService, log *logger.Logger) *RedirectHandler {
	return &RedirectHandler{service: svc, log: log}
}

// Redirect handles GET /{code}: it counts the access and answers 302.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Resolve(r.Context(), r.PathValue("code"))
	if err != nil {
		status, body := mapErrorToResponse(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("redirect failed",
				"request_id", middleware.GetRequestID(r.Context()),
				"code", r.PathValue("code"),
				"error", err,
			)
		}
		http.Error(w, body.Error, status)
		return
	}

	http.Redirect(w, r, m.Target, http.StatusFound)
}
