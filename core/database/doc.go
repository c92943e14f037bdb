// Package database handles database connections and schema bootstrap.
//
// It wraps GORM to configure MySQL connections (sqlite for local runs and
// tests) from the application's configuration, with pooled connections and
// an initial ping so startup fails fast on a bad DSN.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//	err = database.Bootstrap(db, &models.ProductRow{}, &models.LinkRow{})
package database
