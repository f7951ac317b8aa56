package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"svcpool/config"
	"svcpool/middleware"
	"svcpool/registry"
	"svcpool/server"
	"svcpool/service"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a service host",
	Long: `Run a service host offering the Compute and SecurityCenter services.
With --etcd the host announces itself under --host-name so that pools in
discovery mode can find it.`,
	RunE: runServe,
}

func init() {
	config.SetupHostFlags(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	svr := server.NewServer(service.DefaultRegistry(conf.Key),
		server.WithLogger(logger),
		server.WithName(conf.HostName),
		server.WithAnnounce(conf.Host.Weight, conf.Host.TTL))

	svr.Use(middleware.RecoverMiddleware(logger))
	svr.Use(middleware.LoggingMiddleware(logger))
	if conf.Host.RateLimit > 0 {
		svr.Use(middleware.RateLimitMiddleware(conf.Host.RateLimit, conf.Host.Burst))
	}
	if conf.Host.RequestTimeout > 0 {
		svr.Use(middleware.TimeOutMiddleware(conf.Host.RequestTimeout))
	}

	var reg registry.Registry
	if len(conf.Etcd) > 0 {
		etcd, dialErr := registry.NewEtcdRegistry(conf.Etcd, logger)
		if dialErr != nil {
			return fmt.Errorf("connect etcd: %w", dialErr)
		}
		defer func() { err = multierr.Append(err, etcd.Close()) }()
		reg = etcd
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() {
		served <- svr.Serve("tcp", conf.Host.Listen, conf.Host.Advertise, reg)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Error(context.Cause(ctx)))
	return multierr.Append(svr.Shutdown(5*time.Second), <-served)
}
