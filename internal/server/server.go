// Package server exposes the booking engine as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/julianstephens/seatwise/internal/booking"
	"github.com/julianstephens/seatwise/internal/logger"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	// RateLimit is the number of act requests per second allowed per user.
	RateLimit float64
	RateBurst int
}

type Server struct {
	engine  *booking.Engine
	limiter *RateLimiter
	router  *httprouter.Router
}

func New(engine *booking.Engine, opts Options) *Server {
	s := &Server{
		engine:  engine,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateBurst),
		router:  httprouter.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)

	s.router.GET("/options/:option/users/:user/decision", s.decision)
	s.router.POST("/options/:option/users/:user/act", s.limiter.Limit(s.act))
	s.router.POST("/options/:option/users/:user/transition", s.transition)
	s.router.GET("/options/:option/users/:user/history", s.userHistory)

	s.router.POST("/options/:option/cancel", s.cancelOption)
	s.router.POST("/options/:option/restore", s.restoreOption)
	s.router.GET("/options/:option/history", s.optionHistory)
	s.router.GET("/options/:option/waitlist", s.waitlist)

	s.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger.Error("Handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
