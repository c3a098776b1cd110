package db

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gotrader/schwab/pkg/autherr"
)

// Open opens the SQLite credential database at path, creating the file and
// its directory on first use and migrating the schema. Pass ":memory:" for a
// throwaway in-memory database.
func Open(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error().Err(err).Msg("Failed to create database directory")
				return nil, autherr.New(autherr.IO, "cannot create database directory", err)
			}
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to open credential database")
		return nil, autherr.New(autherr.IO, "cannot open credential database", err)
	}

	if err := gdb.AutoMigrate(&record{}); err != nil {
		log.Error().Err(err).Msg("Failed to auto-migrate credential database")
		return nil, autherr.New(autherr.IO, "cannot migrate credential database", err)
	}

	configureLogger(gdb)

	log.Debug().Str("path", path).Msg("Credential database opened")
	return gdb, nil
}

// configureLogger silences GORM's SQL log unless debug logging is on globally.
func configureLogger(gdb *gorm.DB) {
	if zerolog.GlobalLevel() == zerolog.Disabled {
		gdb.Logger = gdb.Logger.LogMode(0)
	} else {
		gdb.Logger = gdb.Logger.LogMode(4)
	}
}

// Close closes the underlying database connection.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}
