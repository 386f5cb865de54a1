// Package bootstrap runs a flowkit service: typed config, component
// lifecycle, hooks and signal-driven shutdown.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.OnConfigure(wire)
//	return app.Run(ctx)
//
// RunTask runs the same lifecycle around a finite task, which is how the
// CLI executes a single workflow file.
package bootstrap
