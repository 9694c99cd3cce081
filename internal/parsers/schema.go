package parsers

import (
	"fmt"
	"strings"
)

// SchemaKind names one of the known CSV layouts
type SchemaKind string

const (
	SchemaAuto         SchemaKind = "auto"
	SchemaPending      SchemaKind = "pending"
	SchemaHistorical   SchemaKind = "historical"
	SchemaAirbnbExport SchemaKind = "airbnb_export"
)

// ParseSchemaKind parses a configured schema name
func ParseSchemaKind(s string) (SchemaKind, error) {
	switch SchemaKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemaAuto:
		return SchemaAuto, nil
	case SchemaPending:
		return SchemaPending, nil
	case SchemaHistorical:
		return SchemaHistorical, nil
	case SchemaAirbnbExport, "airbnb":
		return SchemaAirbnbExport, nil
	default:
		return "", fmt.Errorf("invalid schema '%s': must be auto, pending, historical or airbnb_export", s)
	}
}

// Standard field names shared by every schema
const (
	FieldCode          = "code"
	FieldGuest         = "guest"
	FieldNationalID    = "national_id"
	FieldContact       = "contact"
	FieldStatus        = "status"
	FieldBookingDate   = "booking_date"
	FieldCheckIn       = "check_in"
	FieldCheckOut      = "check_out"
	FieldNights        = "nights"
	FieldAdults        = "adults"
	FieldChildren      = "children"
	FieldInfants       = "infants"
	FieldGrossValue    = "gross_value"
	FieldServiceFee    = "service_fee"
	FieldCleaningFee   = "cleaning_fee"
	FieldGrossEarnings = "gross_earnings"
	FieldTaxes         = "taxes"
	FieldListing       = "listing"
	FieldType          = "type"
)

// Labels implied by schemas that carry no status column
const (
	PendingLabel   = "Pendente"
	ConfirmedLabel = "Confirmada"
	reservationRow = "Reserva"
)

// SchemaConfig describes how one CSV layout maps onto a RowIntent
type SchemaConfig struct {
	Kind        SchemaKind        `json:"kind"`
	Columns     map[string]string `json:"columns"`
	Required    []string          `json:"required"`
	Description string            `json:"description,omitempty"`

	// ColumnAliases maps a standard field name to an alternate header.
	// The alias is tried before the standard header.
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks if the schema configuration is usable
func (sc *SchemaConfig) Validate() error {
	switch sc.Kind {
	case SchemaPending, SchemaHistorical, SchemaAirbnbExport:
	default:
		return fmt.Errorf("unsupported schema kind: %s", sc.Kind)
	}
	for _, field := range sc.Required {
		if strings.TrimSpace(sc.Columns[field]) == "" {
			return fmt.Errorf("schema %s has no column for required field %s", sc.Kind, field)
		}
	}
	return nil
}

// GetColumnName returns the header used for a standard field, checking aliases first
func (sc *SchemaConfig) GetColumnName(standardName string) string {
	if alias, exists := sc.ColumnAliases[standardName]; exists {
		return alias
	}
	if column, exists := sc.Columns[standardName]; exists {
		return column
	}
	return standardName
}

// RequiredHeaders lists the headers that must be present in the file
func (sc *SchemaConfig) RequiredHeaders() []string {
	headers := make([]string, 0, len(sc.Required))
	for _, field := range sc.Required {
		headers = append(headers, sc.GetColumnName(field))
	}
	return headers
}

// WithAliases returns a copy of the schema with extra column aliases
func (sc *SchemaConfig) WithAliases(aliases map[string]string) *SchemaConfig {
	clone := *sc
	clone.ColumnAliases = make(map[string]string, len(sc.ColumnAliases)+len(aliases))
	for k, v := range sc.ColumnAliases {
		clone.ColumnAliases[k] = v
	}
	for k, v := range aliases {
		clone.ColumnAliases[k] = v
	}
	return &clone
}

// MapRow turns a raw CSV row into a RowIntent. skip is true for rows the
// layout carries but that are not reservations.
func (sc *SchemaConfig) MapRow(row map[string]string) (intent *RowIntent, skip bool) {
	lookup := newRowLookup(row)
	get := func(field string) string {
		if alias, ok := sc.ColumnAliases[field]; ok {
			if v, found := lookup.get(alias); found {
				return v
			}
		}
		v, _ := lookup.get(sc.Columns[field])
		return v
	}

	intent = &RowIntent{
		ConfirmationCode: get(FieldCode),
		GuestName:        get(FieldGuest),
		NationalID:       get(FieldNationalID),
		Contact:          get(FieldContact),
		BookingDate:      get(FieldBookingDate),
		CheckInDate:      get(FieldCheckIn),
		CheckOutDate:     get(FieldCheckOut),
		Nights:           get(FieldNights),
		Adults:           get(FieldAdults),
		Children:         get(FieldChildren),
		Infants:          get(FieldInfants),
		GrossValue:       get(FieldGrossValue),
		ServiceFee:       get(FieldServiceFee),
		CleaningFee:      get(FieldCleaningFee),
		GrossEarnings:    get(FieldGrossEarnings),
		Taxes:            get(FieldTaxes),
		Listing:          get(FieldListing),
	}

	switch sc.Kind {
	case SchemaPending:
		intent.StatusLabel = PendingLabel
	case SchemaHistorical:
		if !strings.EqualFold(get(FieldType), reservationRow) {
			return nil, true
		}
		intent.StatusLabel = ConfirmedLabel
	case SchemaAirbnbExport:
		intent.StatusLabel = get(FieldStatus)
		// The export has a single earnings column.
		intent.GrossValue = get(FieldGrossEarnings)
	}

	return intent, false
}

var pendingColumns = map[string]string{
	FieldCode:          "Código de Confirmação",
	FieldGuest:         "Hóspede",
	FieldBookingDate:   "Data da reserva",
	FieldCheckIn:       "Data de início",
	FieldCheckOut:      "Data de término",
	FieldNights:        "Noites",
	FieldGrossValue:    "Valor",
	FieldServiceFee:    "Taxa de serviço",
	FieldCleaningFee:   "Taxa de limpeza",
	FieldGrossEarnings: "Ganhos brutos",
	FieldTaxes:         "Impostos de ocupação",
}

func withColumns(base map[string]string, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// Predefined schema configurations for the observed export versions
var (
	// PendingSchema is the export of upcoming, not yet paid reservations
	PendingSchema = &SchemaConfig{
		Kind:        SchemaPending,
		Columns:     pendingColumns,
		Required:    []string{FieldGuest, FieldBookingDate, FieldCheckIn, FieldCheckOut},
		Description: "Pending reservations export; every row is a pending reservation",
	}

	// HistoricalSchema is the payout history export, mixing reservations and payouts
	HistoricalSchema = &SchemaConfig{
		Kind:        SchemaHistorical,
		Columns:     withColumns(pendingColumns, map[string]string{FieldType: "Tipo"}),
		Required:    []string{FieldType, FieldGuest, FieldBookingDate, FieldCheckIn, FieldCheckOut},
		Description: "Transaction history export; only rows of type Reserva are imported",
	}

	// AirbnbExportSchema is the full reservations export
	AirbnbExportSchema = &SchemaConfig{
		Kind: SchemaAirbnbExport,
		Columns: map[string]string{
			FieldCode:          "Código de confirmação",
			FieldStatus:        "Status",
			FieldGuest:         "Nome do hóspede",
			FieldContact:       "Contato",
			FieldAdults:        "Nº de adultos",
			FieldChildren:      "Nº de crianças",
			FieldInfants:       "Nº de bebês",
			FieldCheckIn:       "Data de início",
			FieldCheckOut:      "Data de término",
			FieldNights:        "Nº de noites",
			FieldBookingDate:   "Reservado",
			FieldListing:       "Anúncio",
			FieldGrossEarnings: "Ganhos",
		},
		Required:    []string{FieldGuest, FieldBookingDate, FieldCheckIn, FieldCheckOut},
		Description: "Reservations export with status, contact and occupants",
	}
)

// GetSchemaConfig returns a predefined schema by kind
func GetSchemaConfig(kind SchemaKind) *SchemaConfig {
	switch kind {
	case SchemaPending:
		return PendingSchema
	case SchemaHistorical:
		return HistoricalSchema
	case SchemaAirbnbExport:
		return AirbnbExportSchema
	default:
		return nil
	}
}

// ListAvailableSchemas returns the predefined schemas in detection order
func ListAvailableSchemas() []*SchemaConfig {
	return []*SchemaConfig{
		AirbnbExportSchema,
		HistoricalSchema,
		PendingSchema,
	}
}

// AutoDetectSchema picks the layout whose required headers are all present.
// It returns nil when no layout matches.
func AutoDetectSchema(headers []string) *SchemaConfig {
	headerMap := make(map[string]bool, len(headers))
	for _, header := range headers {
		headerMap[normalizeHeader(header)] = true
	}

	for _, config := range ListAvailableSchemas() {
		matched := true
		for _, header := range config.RequiredHeaders() {
			if !headerMap[normalizeHeader(header)] {
				matched = false
				break
			}
		}
		if matched {
			return config
		}
	}

	return nil
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
}

type rowLookup map[string]string

func newRowLookup(row map[string]string) rowLookup {
	lookup := make(rowLookup, len(row))
	for k, v := range row {
		lookup[normalizeHeader(k)] = strings.TrimSpace(v)
	}
	return lookup
}

func (l rowLookup) get(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	v, ok := l[normalizeHeader(header)]
	return v, ok
}
