// Package httpapi exposes the messaging session over HTTP. Handlers are
// thin: parse, call into the session service, map the result onto the
// response contract.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chat-gateway/backend/internal/platform/ratelimiter"
	"chat-gateway/backend/internal/protocol"
	"chat-gateway/backend/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultAddr = "127.0.0.1:3000"

// SessionService is the slice of the session manager the HTTP layer uses.
type SessionService interface {
	Status() session.Snapshot
	QR() (string, bool)
	Restart(ctx context.Context) error
	SendMessage(ctx context.Context, jid, text string) error
	Contacts(ctx context.Context) ([]protocol.Contact, error)
}

type Options struct {
	SendRateRPS   float64
	SendRateBurst int
	Registry      *prometheus.Registry
}

type Server struct {
	httpServer  *http.Server
	service     SessionService
	logger      *slog.Logger
	sendLimiter *ratelimiter.MapLimiter
	metrics     *Metrics
}

func NewServer(addr string, svc SessionService, logger *slog.Logger, opts Options) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		service:     svc,
		logger:      logger,
		sendLimiter: ratelimiter.New(opts.SendRateRPS, opts.SendRateBurst, 10*time.Minute),
		metrics:     NewMetrics(registry),
	}

	mux.HandleFunc("/qr", s.instrument("qr", s.handleQR))
	mux.HandleFunc("/qr.png", s.instrument("qr_png", s.handleQRImage))
	mux.HandleFunc("/send", s.instrument("send", s.handleSend))
	mux.HandleFunc("/contacts", s.instrument("contacts", s.handleContacts))
	mux.HandleFunc("/send-by-name", s.instrument("send_by_name", s.handleSendByName))
	mux.HandleFunc("/restart", s.instrument("restart", s.handleRestart))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.instrument("root", s.handleRoot))
	return s
}

// Metrics exposes the server's metric set so the session manager's
// transition hook can be wired to it.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
