package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

// Server runs the API router with a bounded drain window on shutdown, so
// in-flight decision requests finish inside their latency budget instead of
// being cut off mid-response.
type Server struct {
	engine *gin.Engine
	log    *logger.Logger
	drain  time.Duration
}

func NewServer(engine *gin.Engine, log *logger.Logger, drain time.Duration) *Server {
	if drain <= 0 {
		drain = 15 * time.Second
	}
	return &Server{engine: engine, log: log, drain: drain}
}

// Serve blocks until ctx is cancelled or the listener fails, then drains.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.log != nil {
			s.log.Info("HTTP server listening", "addr", addr)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()
		if s.log != nil {
			s.log.Info("Shutting down HTTP server...")
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
