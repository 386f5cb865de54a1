package main

import (
	"context"

	"github.com/kbukum/flowkit/api"
	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/bootstrap"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/sse"
)

// serve runs the HTTP service until a shutdown signal.
func serve(ctx context.Context, cfg *Config, opts ...bootstrap.Option) error {
	app, err := newServeApp(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

// newServeApp registers the infrastructure up front and everything that
// needs a live connection during the configure phase.
func newServeApp(ctx context.Context, cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	log := app.Logger

	metrics, shutdownTelemetry, err := setupObservability(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	validator, err := auth.NewValidator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	in := newInfra(cfg, log)
	for _, c := range in.components() {
		if err := app.RegisterComponent(c); err != nil {
			return nil, err
		}
	}
	events := sse.NewComponent("/api/execute/:runId/events", log)
	if err := app.RegisterComponent(events); err != nil {
		return nil, err
	}

	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*Config]) error {
		svc, err := buildServices(a.Cfg, in, events.Hub(), metrics, a.Logger)
		if err != nil {
			return err
		}
		a.OnStop(svc.orchestrator.Wait, shutdownTelemetry)

		srv := server.New(a.Cfg.Server, a.Logger)
		srv.RegisterDefaultEndpoints(a.Name, a.Components.HealthAll, func() map[string]int {
			return map[string]int{"runs": svc.orchestrator.Active(), "local_tasks": svc.local.InUse()}
		})
		srv.GinEngine().Static("/uploads", a.Cfg.Ops.UploadsDir)

		api.New(api.Deps{
			Orchestrator: svc.orchestrator,
			Runs:         svc.runs,
			Hub:          events.Hub(),
			Tasks:        svc.local,
			Credentials:  svc.creds.Store(),
			Logger:       a.Logger,
		}, a.Cfg.API).Register(srv.GinEngine(), validator)

		if err := a.RegisterComponent(svc.local); err != nil {
			return err
		}
		return a.RegisterComponent(server.NewComponent(srv))
	})
	return app, nil
}
