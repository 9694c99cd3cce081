package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a reservation
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusCancelled  Status = "CANCELLED"
	StatusCompleted  Status = "COMPLETED"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Rank orders the non-cancelled statuses along the stay lifecycle.
// Cancelled and unknown statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusCheckedIn:
		return 2
	case StatusCheckedOut:
		return 3
	case StatusCompleted:
		return 4
	default:
		return -1
	}
}

// DefaultCurrency is the currency recorded when none is configured
const DefaultCurrency = "BRL"

// Guest is a person who books or stays at the property
type Guest struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:200;not null;index"`
	NationalID  *string   `json:"national_id,omitempty" gorm:"size:14;uniqueIndex"`
	RG          string    `json:"rg,omitempty" gorm:"size:20"`
	IssuingBody string    `json:"issuing_body,omitempty" gorm:"size:20"`
	Address     string    `json:"address,omitempty"`
	Contacts    []Contact `json:"contacts,omitempty" gorm:"foreignKey:GuestID"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewGuest creates a guest with a normalized name and an optional national
// ID, stored as digits only
func NewGuest(name, nationalID string) *Guest {
	g := &Guest{Name: NormalizeName(name)}
	if id := digitsOnly(nationalID); id != "" {
		g.NationalID = &id
	}
	return g
}

// FirstName returns the first word of the guest name
func (g *Guest) FirstName() string {
	return firstName(g.Name)
}

// ContactType enumerates contact channels
type ContactType string

const (
	ContactPhone    ContactType = "PHONE"
	ContactEmail    ContactType = "EMAIL"
	ContactWhatsApp ContactType = "WHATSAPP"
	ContactOther    ContactType = "OTHER"
)

// Contact is a way of reaching a guest
type Contact struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	GuestID   uint        `json:"guest_id" gorm:"not null;uniqueIndex:idx_contact_identity"`
	Type      ContactType `json:"type" gorm:"size:10;not null;uniqueIndex:idx_contact_identity"`
	Value     string      `json:"value" gorm:"size:100;not null;uniqueIndex:idx_contact_identity"`
	Principal bool        `json:"principal"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Platform is a booking channel such as Airbnb
type Platform struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:50;not null;uniqueIndex"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reservation is a booked stay
type Reservation struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	PrimaryGuestID   uint            `json:"primary_guest_id" gorm:"not null;index"`
	PrimaryGuest     *Guest          `json:"primary_guest,omitempty" gorm:"foreignKey:PrimaryGuestID"`
	PlatformID       uint            `json:"platform_id" gorm:"not null;index"`
	Platform         *Platform       `json:"platform,omitempty" gorm:"foreignKey:PlatformID"`
	ConfirmationCode string          `json:"confirmation_code" gorm:"size:50;not null;uniqueIndex"`
	BookingDate      time.Time       `json:"booking_date" gorm:"type:date;not null"`
	CheckInDate      time.Time       `json:"check_in_date" gorm:"type:date;not null"`
	CheckOutDate     time.Time       `json:"check_out_date" gorm:"type:date;not null"`
	Nights           int             `json:"nights"`
	Adults           int             `json:"adults" gorm:"default:1"`
	Children         int             `json:"children"`
	Infants          int             `json:"infants"`
	GrossValue       decimal.Decimal `json:"gross_value" gorm:"type:decimal(10,2)"`
	ServiceFee       decimal.Decimal `json:"service_fee" gorm:"type:decimal(10,2)"`
	CleaningFee      decimal.Decimal `json:"cleaning_fee" gorm:"type:decimal(10,2)"`
	GrossEarnings    decimal.Decimal `json:"gross_earnings" gorm:"type:decimal(10,2)"`
	Taxes            decimal.Decimal `json:"taxes" gorm:"type:decimal(10,2)"`
	Currency         string          `json:"currency" gorm:"size:3;default:BRL"`
	Status           Status          `json:"status" gorm:"size:15;not null;index"`
	Notes            string          `json:"notes,omitempty"`

	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt  *time.Time `json:"checked_out_at,omitempty"`
	CheckedInBy   string     `json:"checked_in_by,omitempty" gorm:"size:150"`
	CheckedOutBy  string     `json:"checked_out_by,omitempty" gorm:"size:150"`
	CheckInNotes  string     `json:"check_in_notes,omitempty"`
	CheckOutNotes string     `json:"check_out_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Default check-in and check-out times used when the transition is recorded
// on a different day than the stay date.
const (
	DefaultCheckInHour  = 15
	DefaultCheckOutHour = 12
)

var (
	ErrNotConfirmed     = errors.New("check-in is only allowed for confirmed reservations")
	ErrCheckInTooEarly  = errors.New("check-in cannot happen more than 1 day before the check-in date")
	ErrNotCheckedIn     = errors.New("check-out is only allowed after check-in")
	ErrCheckInAfterOut  = errors.New("check-in date cannot be after the check-out date")
	ErrCheckInBeforeBkg = errors.New("check-in date cannot be before the booking date")
)

// Normalize derives the stored fields that must never be trusted from input
func (r *Reservation) Normalize() {
	r.Nights = NightsBetween(r.CheckInDate, r.CheckOutDate)
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
}

// Validate checks the date ordering of the reservation
func (r *Reservation) Validate() error {
	if strings.TrimSpace(r.ConfirmationCode) == "" {
		return fmt.Errorf("confirmation code cannot be empty")
	}
	if Day(r.CheckInDate).After(Day(r.CheckOutDate)) {
		return ErrCheckInAfterOut
	}
	if Day(r.CheckInDate).Before(Day(r.BookingDate)) {
		return ErrCheckInBeforeBkg
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	return nil
}

// CheckIn records the guest's arrival. It is allowed only for confirmed
// reservations and at most one day ahead of the check-in date.
func (r *Reservation) CheckIn(now time.Time, by, notes string) error {
	if r.Status != StatusConfirmed {
		return ErrNotConfirmed
	}

	today := Day(now)
	checkIn := Day(r.CheckInDate)
	if checkIn.Sub(today) > 24*time.Hour {
		return ErrCheckInTooEarly
	}

	at := now
	if !today.Equal(checkIn) {
		at = atHour(r.CheckInDate, DefaultCheckInHour, now.Location())
	}

	r.CheckedInAt = &at
	r.CheckedInBy = by
	r.CheckInNotes = notes
	r.Status = StatusCheckedIn
	r.Normalize()
	return nil
}

// CheckOut records the guest's departure. It requires a prior check-in.
func (r *Reservation) CheckOut(now time.Time, by, notes string) error {
	if r.Status != StatusCheckedIn {
		return ErrNotCheckedIn
	}

	at := now
	if !Day(now).Equal(Day(r.CheckOutDate)) {
		at = atHour(r.CheckOutDate, DefaultCheckOutHour, now.Location())
	}

	r.CheckedOutAt = &at
	r.CheckedOutBy = by
	r.CheckOutNotes = notes
	r.Status = StatusCheckedOut
	r.Normalize()
	return nil
}

// DocumentType enumerates the documents attached to a reservation
type DocumentType string

const (
	DocumentRG             DocumentType = "RG"
	DocumentCPF            DocumentType = "CPF"
	DocumentProofOfAddress DocumentType = "PROOF_OF_ADDRESS"
	DocumentOther          DocumentType = "OTHER"
)

// Document is a file attached to a reservation for a given guest
type Document struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	ReservationID uint         `json:"reservation_id" gorm:"not null;index"`
	GuestID       uint         `json:"guest_id" gorm:"not null;index"`
	Type          DocumentType `json:"type" gorm:"size:20;not null"`
	Path          string       `json:"path" gorm:"not null"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// GuestRole describes how a guest relates to a reservation
type GuestRole string

const (
	RolePrimaryGuest     GuestRole = "PRIMARY_GUEST"
	RolePayer            GuestRole = "PAYER"
	RoleEmergencyContact GuestRole = "EMERGENCY_CONTACT"
	RoleAdditionalGuest  GuestRole = "ADDITIONAL_GUEST"
	RoleOther            GuestRole = "OTHER"
)

// ReservationGuest links additional people to a reservation
type ReservationGuest struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ReservationID uint      `json:"reservation_id" gorm:"not null;uniqueIndex:idx_reservation_guest"`
	GuestID       uint      `json:"guest_id" gorm:"not null;uniqueIndex:idx_reservation_guest"`
	Role          GuestRole `json:"role" gorm:"size:20;not null;uniqueIndex:idx_reservation_guest"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NightsBetween returns the number of calendar days between two dates
func NightsBetween(checkIn, checkOut time.Time) int {
	if checkIn.IsZero() || checkOut.IsZero() {
		return 0
	}
	return int(Day(checkOut).Sub(Day(checkIn)).Hours() / 24)
}

// Day truncates a timestamp to midnight UTC of its calendar date, as read in
// the timestamp's own location
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func atHour(date time.Time, hour int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, loc)
}

// NormalizeName trims and collapses inner whitespace
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF reports whether the national ID has 11 digits once punctuation is removed
func ValidCPF(cpf string) bool {
	return len(digitsOnly(cpf)) == 11
}

// WhatsAppLink builds a wa.me deep link greeting the guest by first name.
// The country code is prefixed unless the number already carries it.
func WhatsAppLink(phone, guestName, countryCode string) string {
	digits := strings.TrimLeft(digitsOnly(phone), "0")
	if digits == "" {
		return ""
	}
	if countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}

	link := "https://wa.me/" + digits
	if first := firstName(guestName); first != "" {
		link += "?text=Oi,%20" + url.PathEscape(first)
	}
	return link
}
