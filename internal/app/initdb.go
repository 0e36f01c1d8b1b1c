package app

import (
	"fmt"
	"os"
	"path"

	"github.com/vendlink/vendlink/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens the audit-mirror database. Sqlite lives under the
// workdir; postgres is for deployments that want the mirror off-box.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(level)}

	switch cfg.Type {
	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			zap.S().Panicf("failed to connect postgres: %v", err)
		}
		return db
	default:
		if err := os.MkdirAll(path.Join(workdir, "data"), 0o755); err != nil {
			zap.S().Panicf("failed to create data dir: %v", err)
		}
		dbfile := path.Join(workdir, "data", cfg.Name+".db")
		db, err := gorm.Open(sqlite.Open(dbfile), gormConfig)
		if err != nil {
			zap.S().Panicf("failed to open sqlite %s: %v", dbfile, err)
		}
		return db
	}
}
