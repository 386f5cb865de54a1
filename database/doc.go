// Package database manages the SQL connection used by the run and
// credential stores.
//
// Connections are opened through GORM with the SQLite driver, retried on
// startup, and logged through the flowkit logger. The schema is owned by
// versioned migrations embedded in the migration subpackage and applied
// by [Component] on Start when Migrate is set.
//
//	comp := database.NewComponent(cfg.Database, log)
//	app.RegisterComponent(comp)
//	// after Start:
//	store := runstore.NewSQLStore(comp.DB())
package database
