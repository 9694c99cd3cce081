// Package status derives a reservation's lifecycle status from its dates
// and the label found in the source file.
package status

import (
	"fmt"
	"strings"
	"time"

	"golang-reservation-import-service/internal/models"
)

// Label is the normalized meaning of a source status label
type Label int

const (
	LabelNone Label = iota
	LabelPending
	LabelConfirmed
	LabelCancelled
	LabelOther
)

func (l Label) String() string {
	switch l {
	case LabelNone:
		return "none"
	case LabelPending:
		return "pending"
	case LabelConfirmed:
		return "confirmed"
	case LabelCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

var labelAliases = map[string]Label{
	"pendente":                  LabelPending,
	"pending":                   LabelPending,
	"aguardando confirmação":    LabelPending,
	"solicitação pendente":      LabelPending,
	"confirmada":                LabelConfirmed,
	"confirmado":                LabelConfirmed,
	"confirmed":                 LabelConfirmed,
	"hóspede atual":             LabelConfirmed,
	"hóspede anterior":          LabelConfirmed,
	"hospedagem em andamento":   LabelConfirmed,
	"próxima":                   LabelConfirmed,
	"cancelada":                 LabelCancelled,
	"cancelado":                 LabelCancelled,
	"cancelled":                 LabelCancelled,
	"canceled":                  LabelCancelled,
	"cancelada pelo hóspede":    LabelCancelled,
	"cancelada pelo anfitrião":  LabelCancelled,
	"cancelada pelo airbnb":     LabelCancelled,
	"cancelled by guest":        LabelCancelled,
	"cancelled by host":         LabelCancelled,
	"cancelamento pelo hóspede": LabelCancelled,
}

// ParseLabel maps a localized source label onto a Label
func ParseLabel(label string) Label {
	normalized := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if normalized == "" {
		return LabelNone
	}
	if l, ok := labelAliases[normalized]; ok {
		return l
	}
	if strings.HasPrefix(normalized, "cancel") {
		return LabelCancelled
	}
	return LabelOther
}

// Input carries everything Resolve looks at
type Input struct {
	CheckIn     time.Time
	CheckOut    time.Time
	Today       time.Time
	SourceLabel string

	// UnconfirmedPlatform marks a platform whose unlabeled bookings are
	// still awaiting confirmation.
	UnconfirmedPlatform bool
}

// Resolve computes the status of a reservation. Dates are compared by
// calendar day.
func Resolve(in Input) models.Status {
	label := ParseLabel(in.SourceLabel)
	if label == LabelCancelled {
		return models.StatusCancelled
	}

	today := models.Day(in.Today)
	checkIn := models.Day(in.CheckIn)
	checkOut := models.Day(in.CheckOut)

	switch {
	case today.After(checkOut):
		return models.StatusCompleted
	case !today.Before(checkIn):
		return models.StatusCheckedIn
	case label == LabelPending:
		return models.StatusPending
	case label == LabelNone && in.UnconfirmedPlatform:
		return models.StatusPending
	default:
		return models.StatusConfirmed
	}
}

// Policy decides how a freshly computed status combines with a stored one
type Policy string

const (
	// PolicyNeverRegress keeps the furthest lifecycle stage reached
	PolicyNeverRegress Policy = "never_regress"
	// PolicyOverwrite always takes the computed status
	PolicyOverwrite Policy = "overwrite"
)

// ParsePolicy parses a configured policy name
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyNeverRegress:
		return PolicyNeverRegress, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	default:
		return "", fmt.Errorf("invalid status policy '%s': must be never_regress or overwrite", s)
	}
}

// Merge combines the stored status of a reservation with the status
// computed on re-import.
func Merge(existing, computed models.Status, policy Policy) models.Status {
	if policy == PolicyOverwrite || !existing.IsValid() {
		return computed
	}
	if computed == models.StatusCancelled {
		return computed
	}
	if existing == models.StatusCancelled {
		return existing
	}
	if computed.Rank() < existing.Rank() {
		return existing
	}
	return computed
}
