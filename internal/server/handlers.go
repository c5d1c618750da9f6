// internal/server/handlers.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kevfeed/internal/auth"
	"kevfeed/internal/catalog"
	"kevfeed/internal/feed"
	"kevfeed/internal/version"
)

// maxFormBytes bounds the in-memory part of a multipart form.
const maxFormBytes = 1 << 20

func isFeedPath(path string) bool {
	return strings.HasSuffix(path, "rss.xml")
}

// failureMessage describes an unrecoverable error without leaking internals.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, catalog.ErrTransport):
		return "Upstream catalog unavailable"
	case errors.Is(err, catalog.ErrDecode):
		return "Upstream catalog could not be decoded"
	case errors.Is(err, feed.ErrBuild):
		return "Could not build feed"
	default:
		return "Internal server error"
	}
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	out, err := s.feedService.Feed(r.Context())
	if err != nil {
		s.logger.Error("error building RSS feed", "err", err, "request_id", getRequestID(r.Context()))
		RespondWithError(w, http.StatusInternalServerError, failureMessage(err))
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write(out); err != nil {
		s.logger.Warn("error writing RSS XML response", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := s.feedService.Catalog(r.Context())
	if err != nil {
		s.logger.Error("error loading catalog", "err", err, "request_id", getRequestID(r.Context()))
		RespondWithError(w, http.StatusInternalServerError, failureMessage(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(snap.Raw); err != nil {
		s.logger.Warn("error writing JSON response", "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "kevfeed: CISA Known Exploited Vulnerabilities as RSS at /rss.xml and JSON at /feed.json")
}

// handleForm echoes one form field back as JSON.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")

	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		RespondWithError(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if r.MultipartForm != nil {
		if files := r.MultipartForm.File[field]; len(files) > 0 {
			RespondWithError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%q param in form shouldn't be a file", field))
			return
		}
	}

	values, ok := r.PostForm[field]
	if !ok || len(values) == 0 {
		RespondWithError(w, http.StatusBadRequest, "Bad Request")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]string{field: values[0]})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": version.String()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.feedService.Healthy(ctx); err != nil {
		s.logger.Error("health check failed", "err", err)
		http.Error(w, "Cache Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// handleRefresh lets an external scheduler trigger a refresh. The caller
// authenticates with "Authorization: Bearer <token>".
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.config.RefreshTokenHash == "" {
		s.handle404(w, r)
		return
	}

	if err := auth.Verify(s.config.RefreshTokenHash, r.Header.Get("Authorization")); err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="kevfeed"`)
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := s.feedService.Refresh(r.Context()); err != nil {
		s.logger.Error("manual refresh failed", "err", err, "request_id", getRequestID(r.Context()))
		RespondWithError(w, http.StatusInternalServerError, failureMessage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
