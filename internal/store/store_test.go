package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"golang-reservation-import-service/internal/models"
)

func newReservation(code string, guestID, platformID uint) *models.Reservation {
	return &models.Reservation{
		PrimaryGuestID:   guestID,
		PlatformID:       platformID,
		ConfirmationCode: code,
		BookingDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		CheckInDate:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		CheckOutDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Adults:           2,
		GrossValue:       decimal.NewFromInt(1200),
		Status:           models.StatusConfirmed,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Driver: DriverMemory}, false},
		{"postgres with dsn", Config{Driver: DriverPostgres, DSN: "host=localhost"}, false},
		{"mysql upper case", Config{Driver: "MYSQL", DSN: "user@tcp(localhost)/db"}, false},
		{"postgres without dsn", Config{Driver: DriverPostgres}, true},
		{"unknown driver", Config{Driver: "oracle", DSN: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenMemory(t *testing.T) {
	gw, err := Open(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gw.(*MemoryGateway); !ok {
		t.Errorf("expected memory gateway, got %T", gw)
	}
}

func TestGetOrCreateGuest(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()

	first, created, err := gw.GetOrCreateGuest(ctx, "  Maria   Silva ", "")
	if err != nil || !created {
		t.Fatalf("expected guest to be created, got created=%v err=%v", created, err)
	}
	if first.Name != "Maria Silva" {
		t.Errorf("expected normalized name, got %q", first.Name)
	}

	again, created, err := gw.GetOrCreateGuest(ctx, "Maria Silva", "")
	if err != nil || created {
		t.Fatalf("expected existing guest, got created=%v err=%v", created, err)
	}
	if again.ID != first.ID {
		t.Errorf("expected same guest id %d, got %d", first.ID, again.ID)
	}

	withID, created, err := gw.GetOrCreateGuest(ctx, "Maria Silva", "123.456.789-09")
	if err != nil || !created {
		t.Fatalf("expected national id to create a distinct guest, got created=%v err=%v", created, err)
	}

	byID, created, err := gw.GetOrCreateGuest(ctx, "Maria S.", "123.456.789-09")
	if err != nil || created {
		t.Fatalf("expected lookup by national id, got created=%v err=%v", created, err)
	}
	if byID.ID != withID.ID {
		t.Errorf("expected guest %d, got %d", withID.ID, byID.ID)
	}

	if gw.CountGuests() != 2 {
		t.Errorf("expected 2 guests, got %d", gw.CountGuests())
	}
}

func TestGetOrCreateContact(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()
	guest, _, _ := gw.GetOrCreateGuest(ctx, "Ana", "")

	first, created, err := gw.GetOrCreateContact(ctx, guest.ID, models.ContactWhatsApp, "+5511987654321")
	if err != nil || !created || !first.Principal {
		t.Fatalf("expected principal contact to be created, got %+v created=%v err=%v", first, created, err)
	}

	_, created, err = gw.GetOrCreateContact(ctx, guest.ID, models.ContactWhatsApp, "+5511987654321")
	if err != nil || created {
		t.Fatalf("expected existing contact, got created=%v err=%v", created, err)
	}

	second, _, _ := gw.GetOrCreateContact(ctx, guest.ID, models.ContactEmail, "ana@example.com")
	if second.Principal {
		t.Error("expected only the first contact to be principal")
	}
	if got := len(gw.Contacts(guest.ID)); got != 2 {
		t.Errorf("expected 2 contacts, got %d", got)
	}

	if _, _, err := gw.GetOrCreateContact(ctx, 999, models.ContactPhone, "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown guest, got %v", err)
	}
}

func TestReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()
	guest, _, _ := gw.GetOrCreateGuest(ctx, "Ana", "")
	platform, _ := gw.GetOrCreatePlatform(ctx, "Airbnb")

	r := newReservation("HM123", guest.ID, platform.ID)
	r.Nights = 99
	if err := gw.CreateReservation(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID == 0 || r.Nights != 5 || r.Currency != models.DefaultCurrency {
		t.Errorf("expected id, 5 nights and default currency, got %+v", r)
	}

	if err := gw.CreateReservation(ctx, newReservation("HM123", guest.ID, platform.ID)); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	exists, err := gw.ReservationCodeExists(ctx, "HM123")
	if err != nil || !exists {
		t.Errorf("expected code to exist, got %v %v", exists, err)
	}

	found, err := gw.FindReservationByStay(ctx, StayKey{
		GuestID:    guest.ID,
		PlatformID: platform.ID,
		CheckIn:    time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil || found.ConfirmationCode != "HM123" {
		t.Fatalf("expected stay lookup to find HM123, got %v %v", found, err)
	}

	found.GrossValue = decimal.NewFromInt(1500)
	if err := gw.UpdateReservation(ctx, found); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	reloaded, _ := gw.FindReservationByCode(ctx, "HM123")
	if !reloaded.GrossValue.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected updated gross value, got %s", reloaded.GrossValue)
	}

	if _, err := gw.FindReservationByCode(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := gw.UpdateReservation(ctx, newReservation("NEW", guest.ID, platform.ID)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unsaved reservation, got %v", err)
	}
}

func TestMaxCodeSequence(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()

	if n, err := gw.MaxCodeSequence(ctx, "AUTO"); err != nil || n != 0 {
		t.Fatalf("expected 0 on an empty store, got %d %v", n, err)
	}

	for _, code := range []string{"AUTO000002", "AUTO1000000", "AUTOMATIC", "AUTO12x", "HM9999999", "auto0000050"} {
		if err := gw.CreateReservation(ctx, newReservation(code, 1, 1)); err != nil {
			t.Fatalf("seed %s failed: %v", code, err)
		}
	}

	n, err := gw.MaxCodeSequence(ctx, "AUTO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1000000 {
		t.Errorf("expected 1000000, got %d", n)
	}
}

func TestCodeSequence(t *testing.T) {
	tests := []struct {
		code string
		want int
		ok   bool
	}{
		{"AUTO000001", 1, true},
		{"AUTO1234567", 1234567, true},
		{"AUTO", 0, false},
		{"AUTO-1", 0, false},
		{"AUTO12a", 0, false},
		{"HM000001", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := codeSequence(tt.code, "AUTO")
			if got != tt.want || ok != tt.ok {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestWithinTxRollback(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()
	boom := errors.New("boom")

	err := gw.WithinTx(ctx, func(tx Gateway) error {
		guest, _, err := tx.GetOrCreateGuest(ctx, "Rollback Guest", "")
		if err != nil {
			return err
		}
		platform, _ := tx.GetOrCreatePlatform(ctx, "Airbnb")
		if err := tx.CreateReservation(ctx, newReservation("TX1", guest.ID, platform.ID)); err != nil {
			return err
		}
		return tx.WithinTx(ctx, func(inner Gateway) error {
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n, _ := gw.CountReservations(ctx); n != 0 {
		t.Errorf("expected rollback to remove reservation, got %d", n)
	}
	if gw.CountGuests() != 0 {
		t.Errorf("expected rollback to remove guest, got %d", gw.CountGuests())
	}

	err = gw.WithinTx(ctx, func(tx Gateway) error {
		_, _, err := tx.GetOrCreateGuest(ctx, "Kept Guest", "")
		return err
	})
	if err != nil || gw.CountGuests() != 1 {
		t.Errorf("expected committed guest, got count=%d err=%v", gw.CountGuests(), err)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, ErrDuplicateKey},
		{"postgres unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := translate(tt.err); !errors.Is(err, tt.expected) {
				t.Errorf("translate(%v) = %v, want %v", tt.err, err, tt.expected)
			}
		})
	}

	other := &pgconn.PgError{Code: "23503"}
	if err := translate(other); errors.Is(err, ErrDuplicateKey) {
		t.Error("foreign key violation must not be reported as duplicate")
	}
	if translate(nil) != nil {
		t.Error("expected nil")
	}
}
