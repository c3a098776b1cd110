package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gotrader/schwab/pkg/autherr"
	"github.com/gotrader/schwab/token"
)

// record is the GORM model backing the persisted credential row.
type record struct {
	ID               int `gorm:"primaryKey"`
	RefreshToken     string
	RefreshExpiresAt time.Time
	AccessToken      string
	AccessExpiresAt  time.Time
	TokenType        string
}

func (record) TableName() string { return "credentials" }

// Store adapts the credential database to the token.Store interface. Exactly
// one row is kept; every save overwrites it.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store. Accepts *gorm.DB to avoid global access.
func NewStore(gdb *gorm.DB) *Store { return &Store{db: gdb} }

// Load retrieves the credential row. An empty table reports token.ErrNotFound
// so callers fall through to interactive authorization.
func (s *Store) Load() (*token.Token, error) {
	if s.db == nil {
		return nil, autherr.New(autherr.IO, "credential database is not initialized", nil)
	}

	var rec record
	err := s.db.First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: credential table is empty", token.ErrNotFound)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load credential row")
		return nil, autherr.New(autherr.IO, "cannot load credential record", err)
	}

	return &token.Token{
		RefreshToken:     rec.RefreshToken,
		RefreshExpiresAt: rec.RefreshExpiresAt,
		AccessToken:      rec.AccessToken,
		AccessExpiresAt:  rec.AccessExpiresAt,
		TokenType:        rec.TokenType,
	}, nil
}

// Save inserts or overwrites the credential row.
func (s *Store) Save(t *token.Token) error {
	if s.db == nil {
		return autherr.New(autherr.IO, "credential database is not initialized", nil)
	}
	if t.RefreshExpiresAt.Before(t.AccessExpiresAt) {
		return autherr.New(autherr.Clock, "refresh expiry precedes access expiry", nil)
	}

	rec := record{
		ID:               1,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
		AccessToken:      t.AccessToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		TokenType:        t.TokenType,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"refresh_token", "refresh_expires_at", "access_token", "access_expires_at", "token_type",
		}),
	}).Create(&rec).Error
	if err != nil {
		log.Error().Err(err).Msg("Failed to upsert credential row")
		return autherr.New(autherr.IO, "cannot save credential record", err)
	}

	log.Debug().Msg("Credential record saved to database")
	return nil
}
