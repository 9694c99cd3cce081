package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang-reservation-import-service/internal/models"
)

// MemoryGateway keeps everything in process memory. Transactions are
// serialized and roll back by restoring a snapshot.
type MemoryGateway struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memoryState
	now   func() time.Time
}

type memoryState struct {
	nextID       uint
	guests       map[uint]models.Guest
	contacts     map[uint]models.Contact
	platforms    map[uint]models.Platform
	reservations map[uint]models.Reservation
}

func newMemoryState() *memoryState {
	return &memoryState{
		guests:       make(map[uint]models.Guest),
		contacts:     make(map[uint]models.Contact),
		platforms:    make(map[uint]models.Platform),
		reservations: make(map[uint]models.Reservation),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = s.nextID
	for k, v := range s.guests {
		c.guests[k] = v
	}
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	for k, v := range s.platforms {
		c.platforms[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

func (s *memoryState) id() uint {
	s.nextID++
	return s.nextID
}

// NewMemoryGateway creates an empty in-memory store
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		state: newMemoryState(),
		now:   time.Now,
	}
}

func (g *MemoryGateway) GetOrCreateGuest(ctx context.Context, name, nationalID string) (*models.Guest, bool, error) {
	guest := models.NewGuest(name, nationalID)

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range sortedKeys(g.state.guests) {
		existing := g.state.guests[id]
		if guest.NationalID != nil {
			if existing.NationalID != nil && *existing.NationalID == *guest.NationalID {
				return &existing, false, nil
			}
			continue
		}
		if existing.Name == guest.Name {
			return &existing, false, nil
		}
	}

	now := g.now()
	guest.ID = g.state.id()
	guest.CreatedAt = now
	guest.UpdatedAt = now
	g.state.guests[guest.ID] = *guest

	created := *guest
	return &created, true, nil
}

func (g *MemoryGateway) GetOrCreatePlatform(ctx context.Context, name string) (*models.Platform, error) {
	name = strings.TrimSpace(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range g.state.platforms {
		if p.Name == name {
			found := p
			return &found, nil
		}
	}

	now := g.now()
	p := models.Platform{ID: g.state.id(), Name: name, Active: true, CreatedAt: now, UpdatedAt: now}
	g.state.platforms[p.ID] = p
	return &p, nil
}

func (g *MemoryGateway) GetOrCreateContact(ctx context.Context, guestID uint, contactType models.ContactType, value string) (*models.Contact, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.state.guests[guestID]; !ok {
		return nil, false, fmt.Errorf("guest %d: %w", guestID, ErrNotFound)
	}

	principal := true
	for _, c := range g.state.contacts {
		if c.GuestID != guestID {
			continue
		}
		if c.Type == contactType && c.Value == value {
			found := c
			return &found, false, nil
		}
		principal = false
	}

	now := g.now()
	c := models.Contact{
		ID:        g.state.id(),
		GuestID:   guestID,
		Type:      contactType,
		Value:     value,
		Principal: principal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.state.contacts[c.ID] = c
	return &c, true, nil
}

func (g *MemoryGateway) FindReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.state.reservations {
		if r.ConfirmationCode == code {
			found := r
			return &found, nil
		}
	}
	return nil, fmt.Errorf("reservation %s: %w", code, ErrNotFound)
}

func (g *MemoryGateway) FindReservationByStay(ctx context.Context, stay StayKey) (*models.Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	checkIn, checkOut := models.Day(stay.CheckIn), models.Day(stay.CheckOut)
	for _, id := range sortedKeys(g.state.reservations) {
		r := g.state.reservations[id]
		if r.PrimaryGuestID == stay.GuestID &&
			r.PlatformID == stay.PlatformID &&
			models.Day(r.CheckInDate).Equal(checkIn) &&
			models.Day(r.CheckOutDate).Equal(checkOut) {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("reservation for guest %d: %w", stay.GuestID, ErrNotFound)
}

func (g *MemoryGateway) ReservationCodeExists(ctx context.Context, code string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.state.reservations {
		if r.ConfirmationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (g *MemoryGateway) MaxCodeSequence(ctx context.Context, prefix string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	codes := make([]string, 0, len(g.state.reservations))
	for _, r := range g.state.reservations {
		codes = append(codes, r.ConfirmationCode)
	}
	return maxCodeSequence(codes, prefix), nil
}

func (g *MemoryGateway) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.state.reservations {
		if r.ConfirmationCode == reservation.ConfirmationCode {
			return fmt.Errorf("confirmation code %s: %w", reservation.ConfirmationCode, ErrDuplicateKey)
		}
	}

	reservation.Normalize()
	now := g.now()
	reservation.ID = g.state.id()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	g.state.reservations[reservation.ID] = detach(*reservation)
	return nil
}

func (g *MemoryGateway) UpdateReservation(ctx context.Context, reservation *models.Reservation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.state.reservations[reservation.ID]; !ok {
		return fmt.Errorf("reservation %s: %w", reservation.ConfirmationCode, ErrNotFound)
	}
	for id, r := range g.state.reservations {
		if id != reservation.ID && r.ConfirmationCode == reservation.ConfirmationCode {
			return fmt.Errorf("confirmation code %s: %w", reservation.ConfirmationCode, ErrDuplicateKey)
		}
	}

	reservation.Normalize()
	reservation.UpdatedAt = g.now()
	g.state.reservations[reservation.ID] = detach(*reservation)
	return nil
}

func (g *MemoryGateway) CountReservations(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.state.reservations)), nil
}

// CountGuests returns the number of stored guests
func (g *MemoryGateway) CountGuests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.state.guests)
}

// Contacts returns the contacts of a guest ordered by creation
func (g *MemoryGateway) Contacts(guestID uint) []models.Contact {
	g.mu.Lock()
	defer g.mu.Unlock()

	var contacts []models.Contact
	for _, id := range sortedKeys(g.state.contacts) {
		if c := g.state.contacts[id]; c.GuestID == guestID {
			contacts = append(contacts, c)
		}
	}
	return contacts
}

func (g *MemoryGateway) WithinTx(ctx context.Context, fn func(Gateway) error) error {
	g.txMu.Lock()
	defer g.txMu.Unlock()

	g.mu.Lock()
	snapshot := g.state.clone()
	g.mu.Unlock()

	if err := fn(memoryTx{g}); err != nil {
		g.mu.Lock()
		g.state = snapshot
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g *MemoryGateway) Close() error {
	return nil
}

// memoryTx is the Gateway handed to a transaction body. Nested
// transactions join the outer one.
type memoryTx struct {
	*MemoryGateway
}

func (t memoryTx) WithinTx(ctx context.Context, fn func(Gateway) error) error {
	return fn(t)
}

// detach drops loaded associations so stored values never alias caller data
func detach(r models.Reservation) models.Reservation {
	r.PrimaryGuest = nil
	r.Platform = nil
	return r
}

func sortedKeys[V any](m map[uint]V) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
