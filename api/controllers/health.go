package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lotusbook/payments-backend/api/responses"
	"github.com/lotusbook/payments-backend/pkg/config"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the API needs before taking traffic.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lotus-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and fails on the first error.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lotus-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		group, groupCtx := errgroup.WithContext(ctx)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			group.Go(func() error {
				if err := dep.Ping(groupCtx); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
