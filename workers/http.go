package workers

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gobglrelayer/EVMRPC"
	"gobglrelayer/config"
	"gobglrelayer/workers/handlers"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// API exposes the engine's clients and store to the operator handlers
func (e *Engine) API() *handlers.API {
	api := &handlers.API{
		BGL:             e.bgl,
		Chains:          make(map[string]handlers.TokenWallet, len(e.chains)),
		Records:         e.store,
		Checkpoints:     e.store,
		CheckpointNames: []string{BGLCheckpointName},
		FeePercentage:   e.cfg.FeePercentage,
		Logger:          e.logger.With(zap.String("component", "http")),
	}
	for _, id := range e.order {
		api.Chains[id] = e.chains[id]
		api.CheckpointNames = append(api.CheckpointNames, BlockHashName(id), BlockNumberName(id), EVMRPC.NonceName(id))
	}
	return api
}

func NewRouter(api *handlers.API, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Options("/*", CORSHeaders)

	r.Get("/health", handlers.HealthCheck)
	r.Get("/state", api.State)

	r.Get("/balance/bgl", api.BalanceBGL)
	r.Get("/balance/{chain}", api.BalanceEVM)

	r.Get("/conversions/{status}", api.Conversions)
	r.Get("/conversion/{id}", api.Conversion)

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, X-Requested-With")
}

func NewHTTPServer(cfg *config.Configuration, handler http.Handler) (*http.Server, error) {
	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.UseSSL {
		cert, err := tls.LoadX509KeyPair(cfg.Server.CertFile, cfg.Server.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("cannot load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return server, nil
}

// ServeHTTP runs server until ctx is done, then shuts it down within 5 seconds
func ServeHTTP(ctx context.Context, server *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("HTTP service started", zap.String("listen", server.Addr), zap.Bool("tls", server.TLSConfig != nil))

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("error listening to %s: %w", server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP service shutdown error: %w", err)
	}
	logger.Info("HTTP service shutdown normal")
	return nil
}
