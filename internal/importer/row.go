package importer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/internal/parsers"
	"golang-reservation-import-service/internal/reporter"
	"golang-reservation-import-service/internal/status"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

// errCodesExhausted is returned when no free synthetic code was found
var errCodesExhausted = stderrors.New("synthetic confirmation codes exhausted")

// rowData is a row whose values have been parsed and checked
type rowData struct {
	intent  *parsers.RowIntent
	booking time.Time
	checkIn time.Time
	out     time.Time

	amounts  amounts
	adults   *int
	children *int
	infants  *int
}

type amounts struct {
	gross, service, cleaning, earnings, taxes decimal.Decimal
}

// ProcessRow maps, validates and persists one CSV row and records the
// outcome in the report. line is the 1-based line number in the source.
func (s *Session) ProcessRow(ctx context.Context, line int, row map[string]string) reporter.Outcome {
	rowLogger := s.logger.WithField("line_number", line)

	if s.schema == nil {
		headers := make([]string, 0, len(row))
		for header := range row {
			headers = append(headers, header)
		}
		detected := parsers.AutoDetectSchema(headers)
		if detected == nil {
			err := errors.ParseError(errors.CodeUnknownSchema, s.report.Source, line, "", strings.Join(headers, ","), nil)
			s.fail(rowLogger, line, err)
			return reporter.OutcomeFailed
		}
		s.schema = detected.WithAliases(s.config.ColumnAliases)
	}

	intent, skip := s.schema.MapRow(row)
	if skip {
		rowLogger.Debug("Skipping non-reservation row")
		s.report.RecordSkipped(line, "row is not a reservation")
		return reporter.OutcomeSkipped
	}

	data, err := s.parseRow(line, intent)
	if err != nil {
		s.fail(rowLogger, line, err)
		return reporter.OutcomeFailed
	}

	var (
		outcome  reporter.Outcome
		code     string
		platform *models.Platform
		op       = "get_or_create_platform"
	)
	err = s.gateway.WithinTx(ctx, func(tx store.Gateway) error {
		platform = s.platform
		if platform == nil {
			p, err := tx.GetOrCreatePlatform(ctx, s.config.Platform)
			if err != nil {
				return err
			}
			platform = p
		}

		op = "get_or_create_guest"
		guest, created, err := tx.GetOrCreateGuest(ctx, intent.GuestName, intent.NationalID)
		if err != nil {
			return err
		}
		if created {
			rowLogger.WithField("guest_id", guest.ID).Debug("Created guest")
		}

		if intent.Contact != "" {
			op = "get_or_create_contact"
			if err := s.saveContact(ctx, tx, line, guest, intent.Contact); err != nil {
				return err
			}
		}

		op = "resolve_reservation"
		existing, err := s.findExisting(ctx, tx, data, guest.ID, platform.ID)
		if err != nil {
			return err
		}

		if existing != nil {
			op = "update_reservation"
			code = existing.ConfirmationCode
			outcome = reporter.OutcomeUpdated
			s.applyUpdate(existing, data)
			return tx.UpdateReservation(ctx, existing)
		}

		op = "allocate_code"
		code = strings.TrimSpace(intent.ConfirmationCode)
		if code == "" {
			if code, err = s.nextSyntheticCode(ctx, tx); err != nil {
				return err
			}
			rowLogger.WithField("confirmation_code", code).Debug("Allocated synthetic confirmation code")
		}

		op = "create_reservation"
		outcome = reporter.OutcomeCreated
		return tx.CreateReservation(ctx, s.newReservation(code, guest.ID, platform.ID, data))
	})
	if err != nil {
		s.fail(rowLogger, line, persistenceError(line, op, err))
		return reporter.OutcomeFailed
	}

	s.platform = platform

	if outcome == reporter.OutcomeUpdated {
		s.report.RecordUpdated(line, code)
	} else {
		s.report.RecordCreated(line, code)
	}
	rowLogger.WithFields(logger.Fields{
		"confirmation_code": code,
		"outcome":           outcome,
	}).Debug("Row imported")

	return outcome
}

func (s *Session) fail(rowLogger logger.Logger, line int, err error) {
	rowLogger.WithError(err).Warn("Row not imported")
	s.report.RecordFailure(line, err)
}

// parseRow validates the intent and parses its dates, amounts and counts
func (s *Session) parseRow(line int, intent *parsers.RowIntent) (*rowData, error) {
	if err := intent.Validate(); err != nil {
		var ie *parsers.IntentError
		if stderrors.As(err, &ie) {
			if ie.Missing {
				return nil, errors.RowValidationError(errors.CodeMissingField, line, ie.Field, ie.Value, nil)
			}
			return nil, errors.RowValidationError(errors.CodeInvalidValue, line, ie.Field, ie.Value, err)
		}
		return nil, errors.RowValidationError(errors.CodeInvalidValue, line, "row", "", err)
	}

	data := &rowData{intent: intent}

	dates := []struct {
		field string
		value string
		dst   *time.Time
	}{
		{"booking_date", intent.BookingDate, &data.booking},
		{"check_in_date", intent.CheckInDate, &data.checkIn},
		{"check_out_date", intent.CheckOutDate, &data.out},
	}
	for _, d := range dates {
		result, err := parsers.ParseDate(d.value, s.config.DateOrder)
		if err != nil {
			return nil, errors.RowValidationError(errors.CodeInvalidDate, line, d.field, d.value, err)
		}
		if result.Ambiguous {
			s.report.RecordWarning(line, "date %q in %s is ambiguous, read as %s (%s)",
				d.value, d.field, result.Date.Format("2006-01-02"), s.config.DateOrder)
		}
		*d.dst = result.Date
	}

	if data.checkIn.After(data.out) {
		return nil, errors.RowValidationError(errors.CodeDateOrder, line, "check_in_date",
			fmt.Sprintf("check-in %s is after check-out %s", data.checkIn.Format("2006-01-02"), data.out.Format("2006-01-02")),
			models.ErrCheckInAfterOut)
	}
	if data.checkIn.Before(data.booking) {
		return nil, errors.RowValidationError(errors.CodeDateOrder, line, "check_in_date",
			fmt.Sprintf("check-in %s is before booking %s", data.checkIn.Format("2006-01-02"), data.booking.Format("2006-01-02")),
			models.ErrCheckInBeforeBkg)
	}

	data.amounts = amounts{
		gross:    s.parseAmount(line, "gross_value", intent.GrossValue),
		service:  s.parseAmount(line, "service_fee", intent.ServiceFee),
		cleaning: s.parseAmount(line, "cleaning_fee", intent.CleaningFee),
		earnings: s.parseAmount(line, "gross_earnings", intent.GrossEarnings),
		taxes:    s.parseAmount(line, "taxes", intent.Taxes),
	}

	data.adults = s.parseOccupants(line, "adults", intent.Adults)
	data.children = s.parseOccupants(line, "children", intent.Children)
	data.infants = s.parseOccupants(line, "infants", intent.Infants)

	if n := parseCount(intent.Nights); n != nil {
		if computed := models.NightsBetween(data.checkIn, data.out); *n != computed {
			s.report.RecordWarning(line, "nights column says %d but the dates give %d; using %d", *n, computed, computed)
		}
	} else if strings.TrimSpace(intent.Nights) != "" {
		s.report.RecordWarning(line, "nights value %q ignored; nights are computed from the dates", intent.Nights)
	}

	return data, nil
}

// parseAmount falls back to zero for malformed amounts and records a warning
func (s *Session) parseAmount(line int, field, value string) decimal.Decimal {
	amount, err := parsers.ParseAmountStrict(value)
	if err != nil {
		s.logger.WithFields(logger.Fields{
			"line_number": line,
			"field":       field,
			"value":       value,
		}).Warn("AmountParseFallback: using zero for malformed amount")
		s.report.RecordWarning(line, "amount %q in %s could not be parsed, using 0", value, field)
		return decimal.Zero
	}
	return amount
}

// parseOccupants returns nil for an empty or unusable count. An unusable
// one is reported so the stored default is never applied silently.
func (s *Session) parseOccupants(line int, field, value string) *int {
	n := parseCount(value)
	if n == nil && strings.TrimSpace(value) != "" {
		s.report.RecordWarning(line, "%s value %q ignored", field, value)
	}
	return n
}

func parseCount(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// saveContact stores the row's contact as a WhatsApp number, or as an email
// address when it contains '@'
func (s *Session) saveContact(ctx context.Context, tx store.Gateway, line int, guest *models.Guest, raw string) error {
	contactType := models.ContactWhatsApp
	value := parsers.WithCountryCode(raw, s.config.DefaultCountryCode)
	if strings.Contains(raw, "@") {
		contactType = models.ContactEmail
		value = strings.ToLower(strings.TrimSpace(raw))
	}
	if value == "" {
		s.report.RecordWarning(line, "contact %q has no usable phone number", raw)
		return nil
	}

	_, _, err := tx.GetOrCreateContact(ctx, guest.ID, contactType, value)
	return err
}

// findExisting looks the row's reservation up by confirmation code, or by
// stay when the row has no code
func (s *Session) findExisting(ctx context.Context, tx store.Gateway, data *rowData, guestID, platformID uint) (*models.Reservation, error) {
	var (
		existing *models.Reservation
		err      error
	)
	if code := strings.TrimSpace(data.intent.ConfirmationCode); code != "" {
		existing, err = tx.FindReservationByCode(ctx, code)
	} else {
		existing, err = tx.FindReservationByStay(ctx, store.StayKey{
			GuestID:    guestID,
			PlatformID: platformID,
			CheckIn:    data.checkIn,
			CheckOut:   data.out,
		})
	}
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return existing, err
}

// nextSyntheticCode returns the next unused code of the form AUTO000001.
// The sequence starts after the highest code already stored and is read
// again from the store after a collision.
func (s *Session) nextSyntheticCode(ctx context.Context, tx store.Gateway) (string, error) {
	for attempt := 0; attempt < s.config.MaxCodeAttempts; attempt++ {
		if !s.codeSeeded {
			highest, err := tx.MaxCodeSequence(ctx, s.config.CodePrefix)
			if err != nil {
				return "", err
			}
			if highest > s.codeSeq {
				s.codeSeq = highest
			}
			s.codeSeeded = true
		}

		s.codeSeq++
		code := fmt.Sprintf("%s%06d", s.config.CodePrefix, s.codeSeq)
		exists, err := tx.ReservationCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.codeSeeded = false
	}
	return "", errCodesExhausted
}

func (s *Session) today() time.Time {
	return s.clock.Now().In(s.config.Location)
}

func (s *Session) newReservation(code string, guestID, platformID uint, data *rowData) *models.Reservation {
	r := &models.Reservation{
		PrimaryGuestID:   guestID,
		PlatformID:       platformID,
		ConfirmationCode: code,
		BookingDate:      data.booking,
		CheckInDate:      data.checkIn,
		CheckOutDate:     data.out,
		Adults:           1,
		GrossValue:       data.amounts.gross,
		ServiceFee:       data.amounts.service,
		CleaningFee:      data.amounts.cleaning,
		GrossEarnings:    data.amounts.earnings,
		Taxes:            data.amounts.taxes,
		Currency:         s.config.Currency,
		Notes:            listingNote(data.intent.Listing),
	}
	applyCounts(r, data)

	r.Status = status.Resolve(status.Input{
		CheckIn:             data.checkIn,
		CheckOut:            data.out,
		Today:               s.today(),
		SourceLabel:         data.intent.StatusLabel,
		UnconfirmedPlatform: s.config.UnconfirmedPlatform,
	})
	r.Normalize()
	return r
}

// applyUpdate refreshes an existing reservation from a re-imported row.
// Stay dates are kept as stored.
func (s *Session) applyUpdate(r *models.Reservation, data *rowData) {
	r.GrossValue = data.amounts.gross
	r.ServiceFee = data.amounts.service
	r.CleaningFee = data.amounts.cleaning
	r.GrossEarnings = data.amounts.earnings
	r.Taxes = data.amounts.taxes
	applyCounts(r, data)

	computed := status.Resolve(status.Input{
		CheckIn:             r.CheckInDate,
		CheckOut:            r.CheckOutDate,
		Today:               s.today(),
		SourceLabel:         data.intent.StatusLabel,
		UnconfirmedPlatform: s.config.UnconfirmedPlatform,
	})
	merged := status.Merge(r.Status, computed, s.config.StatusPolicy)
	if merged != r.Status {
		s.logger.WithFields(logger.Fields{
			"confirmation_code": r.ConfirmationCode,
			"from":              r.Status,
			"to":                merged,
		}).Debug("Reservation status changed")
	}
	r.Status = merged
	r.Normalize()
}

func applyCounts(r *models.Reservation, data *rowData) {
	if data.adults != nil {
		r.Adults = *data.adults
	}
	if data.children != nil {
		r.Children = *data.children
	}
	if data.infants != nil {
		r.Infants = *data.infants
	}
}

func listingNote(listing string) string {
	if listing == "" {
		return ""
	}
	return "Listing: " + listing
}

// persistenceError classifies a failure inside the row transaction
func persistenceError(line int, op string, err error) error {
	switch {
	case stderrors.Is(err, store.ErrDuplicateKey):
		return errors.RowPersistenceError(errors.CodeDuplicateKey, line, op, err)
	case stderrors.Is(err, errCodesExhausted):
		return errors.RowPersistenceError(errors.CodeCodeExhausted, line, op, err)
	default:
		return errors.RowPersistenceError(errors.CodeStorageFailure, line, op, err)
	}
}
