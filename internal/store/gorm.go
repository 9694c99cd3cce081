package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/pkg/logger"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// GormGateway is a Gateway backed by a SQL database through GORM
type GormGateway struct {
	db     *gorm.DB
	logger logger.Logger
}

// OpenGorm connects to PostgreSQL or MySQL and optionally migrates the schema
func OpenGorm(cfg *Config) (*GormGateway, error) {
	log := logger.GetGlobalLogger().WithComponent("store")

	var dialector gorm.Dialector
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", cfg.Driver)
	}

	level := gormlogger.Silent
	if cfg.LogQueries {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{log: log}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	g := NewGormGateway(db)
	if cfg.AutoMigrate {
		if err := g.Migrate(); err != nil {
			return nil, err
		}
	}

	log.WithField("driver", cfg.Driver).Info("Connected to database")
	return g, nil
}

// NewGormGateway wraps an existing GORM connection
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store"),
	}
}

// Migrate creates or updates the tables used by the importer
func (g *GormGateway) Migrate() error {
	err := g.db.AutoMigrate(
		&models.Guest{}, // referenced by most other tables
		&models.Platform{},
		&models.Contact{},
		&models.Reservation{},
		&models.ReservationGuest{},
		&models.Document{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (g *GormGateway) GetOrCreateGuest(ctx context.Context, name, nationalID string) (*models.Guest, bool, error) {
	guest := models.NewGuest(name, nationalID)
	db := g.db.WithContext(ctx)

	var existing models.Guest
	var err error
	if guest.NationalID != nil {
		err = db.Where("national_id = ?", *guest.NationalID).First(&existing).Error
	} else {
		err = db.Where("name = ?", guest.Name).Order("id").First(&existing).Error
	}
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, translate(err)
	}

	if err := db.Create(guest).Error; err != nil {
		return nil, false, translate(err)
	}
	return guest, true, nil
}

func (g *GormGateway) GetOrCreatePlatform(ctx context.Context, name string) (*models.Platform, error) {
	var platform models.Platform
	err := g.db.WithContext(ctx).
		Where(models.Platform{Name: strings.TrimSpace(name)}).
		Attrs(models.Platform{Active: true}).
		FirstOrCreate(&platform).Error
	if err != nil {
		return nil, translate(err)
	}
	return &platform, nil
}

func (g *GormGateway) GetOrCreateContact(ctx context.Context, guestID uint, contactType models.ContactType, value string) (*models.Contact, bool, error) {
	db := g.db.WithContext(ctx)

	var existing models.Contact
	err := db.Where("guest_id = ? AND type = ? AND value = ?", guestID, contactType, value).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, translate(err)
	}

	var count int64
	if err := db.Model(&models.Contact{}).Where("guest_id = ?", guestID).Count(&count).Error; err != nil {
		return nil, false, translate(err)
	}

	contact := &models.Contact{
		GuestID:   guestID,
		Type:      contactType,
		Value:     value,
		Principal: count == 0,
	}
	if err := db.Create(contact).Error; err != nil {
		return nil, false, translate(err)
	}
	return contact, true, nil
}

func (g *GormGateway) FindReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := g.db.WithContext(ctx).Where("confirmation_code = ?", code).First(&reservation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &reservation, nil
}

func (g *GormGateway) FindReservationByStay(ctx context.Context, stay StayKey) (*models.Reservation, error) {
	var reservation models.Reservation
	err := g.db.WithContext(ctx).
		Where("primary_guest_id = ? AND platform_id = ? AND check_in_date = ? AND check_out_date = ?",
			stay.GuestID, stay.PlatformID, models.Day(stay.CheckIn), models.Day(stay.CheckOut)).
		Order("id").
		First(&reservation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &reservation, nil
}

func (g *GormGateway) ReservationCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Reservation{}).Where("confirmation_code = ?", code).Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// codeScanLimit bounds the candidates read by MaxCodeSequence. Longer codes
// sort first, so only codes with a non-numeric tail can push a real
// sequence past the limit.
const codeScanLimit = 100

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (g *GormGateway) MaxCodeSequence(ctx context.Context, prefix string) (int, error) {
	var codes []string
	err := g.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("confirmation_code LIKE ?", likeEscaper.Replace(prefix)+"%").
		Order("LENGTH(confirmation_code) DESC, confirmation_code DESC").
		Limit(codeScanLimit).
		Pluck("confirmation_code", &codes).Error
	if err != nil {
		return 0, translate(err)
	}
	return maxCodeSequence(codes, prefix), nil
}

func (g *GormGateway) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	reservation.Normalize()
	return translate(g.db.WithContext(ctx).Omit("PrimaryGuest", "Platform").Create(reservation).Error)
}

func (g *GormGateway) UpdateReservation(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == 0 {
		return fmt.Errorf("cannot update reservation %s: %w", reservation.ConfirmationCode, ErrNotFound)
	}
	reservation.Normalize()
	return translate(g.db.WithContext(ctx).Omit("PrimaryGuest", "Platform").Save(reservation).Error)
}

func (g *GormGateway) CountReservations(ctx context.Context) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Reservation{}).Count(&count).Error
	return count, translate(err)
}

func (g *GormGateway) WithinTx(ctx context.Context, fn func(Gateway) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormGateway{db: tx, logger: g.logger})
	})
}

func (g *GormGateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps driver errors onto the package sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case isDuplicateKey(err):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return err
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// gormWriter sends GORM's query log through the application logger
type gormWriter struct {
	log logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debugf(format, args...)
}
