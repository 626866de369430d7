package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/switchlink/pkg/adapters/fspiop"
	switchhttp "github.com/aretw0/switchlink/pkg/adapters/http"
	"github.com/aretw0/switchlink/pkg/adapters/redis"
	"github.com/aretw0/switchlink/pkg/models"
	"github.com/aretw0/switchlink/pkg/observability"
	"github.com/aretw0/switchlink/pkg/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	// lockMargin is added to the run budget so a lock never expires mid-run.
	lockMargin = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the caller API, the switch callback listener and the metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func (a *app) client() *fspiop.Client {
	sw := a.cfg.Switch
	opts := []fspiop.Option{
		fspiop.WithHTTPClient(&http.Client{Timeout: time.Duration(sw.TimeoutSeconds) * time.Second}),
		fspiop.WithRetries(sw.Retries),
		fspiop.WithLogger(a.logger),
	}
	for resource, endpoint := range sw.Endpoints {
		opts = append(opts, fspiop.WithEndpoint(resource, endpoint))
	}
	return fspiop.New(a.cfg.DFSPID, sw.Endpoint, opts...)
}

func (a *app) guard() *session.Guard {
	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithLockTTL(a.cfg.Models().RunBudget() + lockMargin),
	}
	if a.redis != nil {
		opts = append(opts, session.WithLocker(redis.NewLocker(a.redis.Client(), "switchlink:")))
	}
	return session.NewGuard(opts...)
}

func (a *app) serve(ctx context.Context) error {
	metrics := observability.NewMetrics()
	env := models.NewEnv(a.cache, a.client(), a.cfg.Models(),
		models.WithLogger(a.logger),
		models.WithMetrics(metrics),
	)

	servers := []*http.Server{
		{Addr: a.cfg.Server.APIAddr, Handler: switchhttp.NewAPIHandler(env, a.guard(),
			switchhttp.WithLogger(a.logger), switchhttp.WithVersion(version))},
		{Addr: a.cfg.Server.CallbackAddr, Handler: switchhttp.NewCallbackHandler(a.cache,
			switchhttp.WithLogger(a.logger))},
	}
	if a.cfg.Server.MetricsAddr != "" {
		servers = append(servers, &http.Server{Addr: a.cfg.Server.MetricsAddr, Handler: metrics.Handler()})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			a.logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
				_ = srv.Close()
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
