package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	rtmp "github.com/torresjeff/rtmp-chunkstream"
	"github.com/torresjeff/rtmp-chunkstream/config"
	"github.com/torresjeff/rtmp-chunkstream/handler"
	"github.com/torresjeff/rtmp-chunkstream/metrics"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var (
		configPath  string
		addr        string
		metricsAddr string
		debug       bool
		reassemble  bool
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept RTMP connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags override the file
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if flags.Changed("debug") {
				cfg.Debug = debug
			}
			if flags.Changed("reassemble") {
				cfg.Reassemble = reassemble
			}
			if flags.Changed("strict-version") {
				cfg.StrictVersion = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&addr, "addr", ":"+config.DefaultPort, "RTMP listen address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for /metrics and /healthz")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log at debug level with the development encoder")
	cmd.Flags().BoolVar(&reassemble, "reassemble", false, "Reassemble messages split across chunks")
	cmd.Flags().BoolVar(&strict, "strict-version", false, "Reject clients that don't request RTMP version 3")

	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(cfg *config.Config) error {
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := &rtmp.Server{
		Logger:  logger,
		Handler: handler.New(logger, cfg),
		Config:  cfg,
		Metrics: metrics.New(metrics.WithRegistry(registry)),
	}

	var httpServer *http.Server
	if cfg.MetricsAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newRouter(registry, server),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("[http] Listening on " + cfg.MetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("[http] server stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("[server] shutting down")
		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}
		server.Close()
	}()

	if err := server.Listen(); err != nil && err != rtmp.ErrServerClosed {
		return err
	}
	return nil
}

func newRouter(registry *prometheus.Registry, server *rtmp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(strconv.FormatInt(server.ActiveSessions(), 10) + "\n"))
	})
	return r
}
