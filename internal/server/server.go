// internal/server/server.go
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"kevfeed/internal/feed"
)

type Config struct {
	// RefreshTokenHash is the bcrypt hash of the bearer token accepted by
	// POST /admin/refresh. Empty disables the endpoint.
	RefreshTokenHash string
	// MaxConnections caps concurrently open client connections; 0 means no cap.
	MaxConnections int
}

type Server struct {
	logger      *slog.Logger
	feedService *feed.Service
	config      Config
	httpServer  *http.Server
}

func NewServer(logger *slog.Logger, feedService *feed.Service, config Config) *Server {
	s := &Server{
		logger:      logger,
		feedService: feedService,
		config:      config,
	}
	s.httpServer = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /rss.xml", s.handleRSS)
	mux.HandleFunc("GET /feed.json", s.handleJSON)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /form/{field}", s.handleForm)
	mux.HandleFunc("POST /admin/refresh", s.handleRefresh)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Any path ending in rss.xml serves the feed, e.g. /feeds/kev/rss.xml.
		if isFeedPath(r.URL.Path) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Allow", "GET, HEAD")
				RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			s.handleRSS(w, r)
			return
		}
		s.handle404(w, r)
	})

	return s.requestID(s.logRequests(s.recoverPanics(gzipMiddleware(mux))))
}

func (s *Server) handle404(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("404 error", "path", r.URL.Path)
	RespondWithError(w, http.StatusNotFound, "Not found")
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	s.logger.Info("starting server", "addr", ln.Addr().String(), "max_connections", s.config.MaxConnections)
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
