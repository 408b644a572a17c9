package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ShutdownTimeout bounds how long servers wait for in-flight requests once
// the context is done. Websocket connections are hijacked and not waited for.
var ShutdownTimeout = 10 * time.Second

// ListenAndServe runs the given servers until ctx is done.
func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("server stopped")

			default:
				logs.Warn(errors.New("server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}(s)
	}
	wg.Wait()
}

// MetricsPathFormatter drops the path of redirected, rejected and unknown
// requests. Debug paths are folded into their prefix.
func MetricsPathFormatter(statusCode int, path string) string {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusNotFound,
		http.StatusMethodNotAllowed:
		return ""
	}

	if strings.HasPrefix(path, "/debug/") {
		return "/debug"
	}
	return path
}
