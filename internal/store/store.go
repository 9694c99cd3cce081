// Package store persists guests, contacts, platforms and reservations.
//
// The importer talks to storage only through Gateway. Two implementations
// exist: a GORM-backed one for PostgreSQL or MySQL and an in-memory one
// used by tests and dry runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang-reservation-import-service/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a write violates a unique constraint
	ErrDuplicateKey = errors.New("duplicate key")
)

// Gateway is the persistence boundary of the importer
type Gateway interface {
	// GetOrCreateGuest finds a guest by national ID when one is given,
	// otherwise by normalized name. The bool reports whether it was created.
	GetOrCreateGuest(ctx context.Context, name, nationalID string) (*models.Guest, bool, error)
	GetOrCreatePlatform(ctx context.Context, name string) (*models.Platform, error)
	GetOrCreateContact(ctx context.Context, guestID uint, contactType models.ContactType, value string) (*models.Contact, bool, error)

	FindReservationByCode(ctx context.Context, code string) (*models.Reservation, error)
	// FindReservationByStay finds the reservation of a guest on a platform
	// for the given check-in and check-out dates.
	FindReservationByStay(ctx context.Context, stay StayKey) (*models.Reservation, error)
	ReservationCodeExists(ctx context.Context, code string) (bool, error)
	// MaxCodeSequence returns the highest number N among confirmation codes
	// made of prefix followed only by digits, or 0 when there is none.
	MaxCodeSequence(ctx context.Context, prefix string) (int, error)
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	UpdateReservation(ctx context.Context, reservation *models.Reservation) error
	CountReservations(ctx context.Context) (int64, error)

	// WithinTx runs fn in a transaction. A returned error rolls back every
	// write fn made through the Gateway it was given.
	WithinTx(ctx context.Context, fn func(Gateway) error) error

	Close() error
}

// StayKey identifies a stay independently of its confirmation code
type StayKey struct {
	GuestID    uint
	PlatformID uint
	CheckIn    time.Time
	CheckOut   time.Time
}

// Driver names a storage backend
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverMemory   Driver = "memory"
)

// Config holds storage connection settings
type Config struct {
	Driver      Driver `mapstructure:"driver" json:"driver"`
	DSN         string `mapstructure:"dsn" json:"-"`
	AutoMigrate bool   `mapstructure:"auto_migrate" json:"auto_migrate"`
	LogQueries  bool   `mapstructure:"log_queries" json:"log_queries"`
}

// DefaultConfig returns an in-memory configuration
func DefaultConfig() *Config {
	return &Config{
		Driver:      DriverMemory,
		AutoMigrate: true,
	}
}

// Validate checks the storage configuration
func (c *Config) Validate() error {
	switch Driver(strings.ToLower(string(c.Driver))) {
	case DriverPostgres, DriverMySQL:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("database dsn is required for driver '%s'", c.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver '%s': must be postgres, mysql or memory", c.Driver)
	}
	return nil
}

// Open returns the Gateway selected by the configuration
func Open(cfg *Config) (Gateway, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if Driver(strings.ToLower(string(cfg.Driver))) == DriverMemory {
		return NewMemoryGateway(), nil
	}
	return OpenGorm(cfg)
}

// codeSequence extracts N from a code of the form <prefix><digits>
func codeSequence(code, prefix string) (int, bool) {
	digits, ok := strings.CutPrefix(code, prefix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func maxCodeSequence(codes []string, prefix string) int {
	highest := 0
	for _, code := range codes {
		if n, ok := codeSequence(code, prefix); ok && n > highest {
			highest = n
		}
	}
	return highest
}
