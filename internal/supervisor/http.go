package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ewilliams-labs/emotune/internal/logging"
)

// HTTPServer is the subset of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts a blocking ListenAndServe to suture.Service.
type HTTPService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

// Serve runs the listener until ctx is done, then shuts it down gracefully.
// A listener failure is returned so the supervisor can restart it.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		logging.Info().Str("addr", s.addr).Msg("http server stopped")
		return ctx.Err()
	}
}

func (s *HTTPService) String() string { return "http-server" }
