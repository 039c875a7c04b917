package database

import (
	"database/sql"
	"time"

	"papanskor/config"
	"papanskor/pkg/logger"

	_ "github.com/lib/pq"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// Connect opens the pool and pings until the database answers or the attempts run out.
func Connect(cfg config.DBConfig) *sql.DB {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		logger.Sugar.Fatalf("Failed to open database connection: %v", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	for i := 0; i < pingAttempts; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Infof("Connected to database %s on %s", cfg.Name, cfg.Host)
			return db
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", pingBackoff, err)
		time.Sleep(pingBackoff)
	}
	logger.Sugar.Fatalf("Could not connect to database %s after %d attempts", cfg.Name, pingAttempts)
	return nil
}
