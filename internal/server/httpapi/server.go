package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pollkeeper/internal/common"
	"github.com/dmitrijs2005/pollkeeper/internal/logging"
	"github.com/dmitrijs2005/pollkeeper/internal/server/services"
)

var errMissingToken = fmt.Errorf("%w: missing bearer token", common.ErrorUnauthorized)

// HTTPServer exposes the poll API over HTTP.
type HTTPServer struct {
	address   string
	secretKey string
	logger    logging.Logger

	userService   *services.UserService
	pollService   *services.PollService
	voteService   *services.VoteService
	exportService *services.ExportService

	server *http.Server
}

func NewHTTPServer(address string, secretKey string, logger logging.Logger,
	userService *services.UserService, pollService *services.PollService,
	voteService *services.VoteService, exportService *services.ExportService) *HTTPServer {
	return &HTTPServer{
		address:       address,
		secretKey:     secretKey,
		logger:        logger.With("module", "http_server"),
		userService:   userService,
		pollService:   pollService,
		voteService:   voteService,
		exportService: exportService,
	}
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)

	mux.HandleFunc("GET /polls", s.handleListActivePolls)
	mux.HandleFunc("POST /polls", s.requireAuth(s.handleCreatePoll))
	mux.HandleFunc("GET /polls/my", s.requireAuth(s.handleListMyPolls))
	mux.HandleFunc("GET /polls/{id}", s.optionalAuth(s.handleGetPoll))
	mux.HandleFunc("PUT /polls/{id}", s.requireAuth(s.handleUpdatePoll))
	mux.HandleFunc("DELETE /polls/{id}", s.requireAuth(s.handleDeletePoll))
	mux.HandleFunc("PATCH /polls/{id}/status", s.requireAuth(s.handleTogglePoll))

	mux.HandleFunc("POST /polls/{id}/vote", s.requireAuth(s.handleSubmitVote))
	mux.HandleFunc("GET /polls/{id}/votes/me", s.requireAuth(s.handleGetUserVote))
	mux.HandleFunc("GET /votes/me", s.requireAuth(s.handleGetMyVotes))
	mux.HandleFunc("GET /polls/{id}/stats", s.optionalAuth(s.handleGetStatistics))
	mux.HandleFunc("POST /polls/{id}/export", s.requireAuth(s.handleExportResults))

	return withLogging(s.logger, withCORS(mux))
}

// Run starts the listener and blocks until ctx is cancelled, then shuts
// the server down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting http server", "address", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info(ctx, "shutting down http server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
