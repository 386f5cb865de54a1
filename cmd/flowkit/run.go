package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/bootstrap"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/runstore"
	"github.com/kbukum/flowkit/validation"
	"github.com/kbukum/flowkit/workflow"
)

// errRunFailed makes the process exit non-zero after printing a failed run.
var errRunFailed = errors.New("workflow run failed")

// runFile executes the workflow in path once, in process, and writes the
// finished run as JSON to out.
func runFile(ctx context.Context, cfg *Config, path string, out io.Writer, opts ...bootstrap.Option) error {
	def, err := workflow.LoadFile(path)
	if err != nil {
		return err
	}
	req := def.Request()
	if err := validation.Validate(req); err != nil {
		return err
	}

	cfg.Store.Backend = string(runstore.BackendMemory)
	// stdout carries the run document.
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	app, err := bootstrap.NewApp(cfg, append([]bootstrap.Option{bootstrap.WithSummaryOutput(io.Discard)}, opts...)...)
	if err != nil {
		return err
	}
	in := newInfra(cfg, app.Logger)
	for _, c := range in.components() {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	var svc *services
	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*Config]) error {
		var err error
		svc, err = buildServices(a.Cfg, in, nil, nil, a.Logger)
		if err != nil {
			return err
		}
		return a.RegisterComponent(svc.local)
	})

	return app.RunTask(ctx, func(ctx context.Context) error {
		run, err := svc.orchestrator.Execute(ctx, flow.Request{
			WorkflowRef: req.WorkflowID,
			OwnerID:     auth.Anonymous,
			Graph:       req.Graph(),
		})
		if run == nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(run); encErr != nil {
			return encErr
		}
		if err != nil {
			return err
		}
		if run.Status == workflow.RunFailed {
			return errRunFailed
		}
		return nil
	})
}
