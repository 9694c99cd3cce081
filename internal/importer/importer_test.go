package importer

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/internal/parsers"
	"golang-reservation-import-service/internal/reporter"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

const (
	pendingHeader    = "Código de Confirmação,Hóspede,Data da reserva,Data de início,Data de término,Noites,Valor,Taxa de serviço,Taxa de limpeza,Ganhos brutos,Impostos de ocupação\n"
	historicalHeader = "Tipo,Código de Confirmação,Hóspede,Data da reserva,Data de início,Data de término,Noites,Valor,Taxa de serviço,Taxa de limpeza,Ganhos brutos,Impostos de ocupação\n"
	airbnbHeader     = "Código de confirmação,Status,Nome do hóspede,Contato,Nº de adultos,Nº de crianças,Nº de bebês,Data de início,Data de término,Nº de noites,Reservado,Anúncio,Ganhos\n"
)

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, gw store.Gateway, mutate func(*Config)) *Session {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Location = time.UTC
	if mutate != nil {
		mutate(cfg)
	}

	s, err := NewSession(gw, cfg,
		WithClock(ClockFunc(func() time.Time { return fixedNow })),
		WithLogger(logger.NewDiscardLogger()),
		WithRunID("test-run"),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}
	return path
}

func importFile(t *testing.T, gw store.Gateway, content string, mutate func(*Config)) *reporter.ImportReport {
	t.Helper()
	report, err := newTestSession(t, gw, mutate).ImportFile(context.Background(), writeCSV(t, content))
	if err != nil {
		t.Fatalf("unexpected batch error: %v", err)
	}
	return report
}

func mustFind(t *testing.T, gw store.Gateway, code string) *models.Reservation {
	t.Helper()
	r, err := gw.FindReservationByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("reservation %s not found: %v", code, err)
	}
	return r
}

func TestImportCreatesSyntheticCode(t *testing.T) {
	gw := store.NewMemoryGateway()
	content := pendingHeader + `,Maria Silva,01/03/2024,10/03/2024,15/03/2024,5,"R$ 1.000,00",,,,` + "\n"

	report := importFile(t, gw, content, nil)

	result := report.Result()
	if !result.Success || result.Imported != 1 {
		t.Fatalf("expected one successful import, got %+v", result)
	}
	if report.Created != 1 || report.Schema != string(parsers.SchemaPending) {
		t.Errorf("expected created pending row, got created=%d schema=%s", report.Created, report.Schema)
	}
	if report.Successes[0] != "reservation AUTO000001 created" {
		t.Errorf("unexpected success message %q", report.Successes[0])
	}

	r := mustFind(t, gw, "AUTO000001")
	if r.Nights != 5 {
		t.Errorf("expected 5 nights, got %d", r.Nights)
	}
	if !r.GrossValue.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected gross value 1000, got %s", r.GrossValue)
	}
	if r.Status != models.StatusCompleted {
		t.Errorf("expected completed stay, got %s", r.Status)
	}
	if r.Currency != "BRL" {
		t.Errorf("expected BRL, got %s", r.Currency)
	}

	wantWarnings := []string{
		`line 2: date "01/03/2024" in booking_date is ambiguous, read as 2024-03-01 (DMY)`,
		`line 2: date "10/03/2024" in check_in_date is ambiguous, read as 2024-03-10 (DMY)`,
	}
	if len(report.Warnings) != len(wantWarnings) {
		t.Fatalf("expected ambiguous-date warnings %v, got %v", wantWarnings, report.Warnings)
	}
	for i, want := range wantWarnings {
		if report.Warnings[i] != want {
			t.Errorf("warning %d: expected %q, got %q", i, want, report.Warnings[i])
		}
	}
	if gw.CountGuests() != 1 {
		t.Errorf("expected one guest, got %d", gw.CountGuests())
	}
}

func TestImportUpdatesExistingCode(t *testing.T) {
	gw := store.NewMemoryGateway()
	importFile(t, gw, pendingHeader+`,Maria Silva,01/03/2024,10/03/2024,15/03/2024,5,"R$ 1.000,00",,,,`+"\n", nil)

	report := importFile(t, gw, pendingHeader+`AUTO000001,Maria Silva,01/03/2024,10/03/2024,15/03/2024,5,"R$ 1.200,00",,,,`+"\n", nil)

	if report.Updated != 1 || report.Created != 0 {
		t.Fatalf("expected one update, got created=%d updated=%d errors=%v", report.Created, report.Updated, report.Errors)
	}
	if report.Successes[0] != "reservation AUTO000001 updated" {
		t.Errorf("unexpected success message %q", report.Successes[0])
	}

	r := mustFind(t, gw, "AUTO000001")
	if !r.GrossValue.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("expected gross value 1200, got %s", r.GrossValue)
	}
	if r.Nights != 5 {
		t.Errorf("expected nights unchanged at 5, got %d", r.Nights)
	}
	if n, _ := gw.CountReservations(context.Background()); n != 1 {
		t.Errorf("expected one reservation, got %d", n)
	}
	if gw.CountGuests() != 1 {
		t.Errorf("expected one guest, got %d", gw.CountGuests())
	}
}

func TestImportIsIdempotent(t *testing.T) {
	gw := store.NewMemoryGateway()
	content := airbnbHeader +
		`HMAAA111,Confirmada,Ana Souza,(11) 98765-4321,2,1,0,10/04/2024,12/04/2024,2,01/03/2024,Casa da Praia,"R$ 800,00"` + "\n" +
		`,Confirmada,Bruno Lima,,2,0,0,20/04/2024,25/04/2024,5,02/03/2024,Casa da Praia,"1.500,00"` + "\n" +
		`HMCCC333,Cancelada pelo hóspede,Carla Dias,,1,0,0,01/05/2024,03/05/2024,2,03/03/2024,Casa da Praia,"0,00"` + "\n"

	first := importFile(t, gw, content, nil)
	if first.Created != 3 || !first.Success() {
		t.Fatalf("expected 3 created, got created=%d errors=%v", first.Created, first.Errors)
	}
	countAfterFirst, _ := gw.CountReservations(context.Background())

	second := importFile(t, gw, content, nil)
	if second.Created != 0 || second.Updated != 3 {
		t.Fatalf("expected 0 created and 3 updated, got created=%d updated=%d errors=%v",
			second.Created, second.Updated, second.Errors)
	}
	countAfterSecond, _ := gw.CountReservations(context.Background())
	if countAfterFirst != countAfterSecond {
		t.Errorf("reservation count changed from %d to %d", countAfterFirst, countAfterSecond)
	}

	codes := []string{"HMAAA111", "AUTO000001", "HMCCC333"}
	for i, row := range second.Rows {
		if row.Code != codes[i] {
			t.Errorf("row %d: expected code %s, got %s", i, codes[i], row.Code)
		}
	}

	if r := mustFind(t, gw, "HMCCC333"); r.Status != models.StatusCancelled {
		t.Errorf("expected cancelled reservation, got %s", r.Status)
	}
	ana := mustFind(t, gw, "HMAAA111")
	if ana.Adults != 2 || ana.Children != 1 || ana.Status != models.StatusConfirmed {
		t.Errorf("unexpected occupants or status: %+v", ana)
	}
	if ana.Notes != "Listing: Casa da Praia" {
		t.Errorf("unexpected notes %q", ana.Notes)
	}

	contacts := gw.Contacts(ana.PrimaryGuestID)
	if len(contacts) != 1 || contacts[0].Value != "+5511987654321" || contacts[0].Type != models.ContactWhatsApp {
		t.Errorf("expected one WhatsApp contact, got %+v", contacts)
	}
}

func TestMissingGuestName(t *testing.T) {
	gw := store.NewMemoryGateway()
	report := importFile(t, gw, pendingHeader+`HM1,,01/03/2024,10/03/2024,15/03/2024,5,100,,,,`+"\n", nil)

	if len(report.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", report.Errors)
	}
	if !strings.Contains(report.Errors[0], "guest_name") {
		t.Errorf("expected guest_name in error, got %q", report.Errors[0])
	}
	if gw.CountGuests() != 0 {
		t.Errorf("expected no guest, got %d", gw.CountGuests())
	}
	if n, _ := gw.CountReservations(context.Background()); n != 0 {
		t.Errorf("expected no reservation, got %d", n)
	}
	if report.Success() {
		t.Error("expected unsuccessful import")
	}
}

func TestNightsAreComputed(t *testing.T) {
	gw := store.NewMemoryGateway()
	report := importFile(t, gw, pendingHeader+`HM2,Joana,01/03/2024,2024-03-10,2024-03-13,9,100,,,,`+"\n", nil)

	if r := mustFind(t, gw, "HM2"); r.Nights != 3 {
		t.Errorf("expected 3 nights, got %d", r.Nights)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "nights column says 9") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected nights warning, got %v", report.Warnings)
	}
}

func TestRowValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		code errors.ErrorCode
	}{
		{"invalid check-in", `HM1,Ana,01/03/2024,someday,15/03/2024,,,,,,`, errors.CodeInvalidDate},
		{"check-in after check-out", `HM1,Ana,01/03/2024,20/03/2024,15/03/2024,,,,,,`, errors.CodeDateOrder},
		{"check-in before booking", `HM1,Ana,25/03/2024,20/03/2024,28/03/2024,,,,,,`, errors.CodeDateOrder},
		{"missing booking date", `HM1,Ana,,20/03/2024,28/03/2024,,,,,,`, errors.CodeMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := store.NewMemoryGateway()
			s := newTestSession(t, gw, func(c *Config) { c.Schema = parsers.SchemaPending })

			report, err := s.ImportReader(context.Background(), "rows.csv", strings.NewReader(pendingHeader+tt.row+"\n"))
			if err != nil {
				t.Fatalf("unexpected batch error: %v", err)
			}
			if report.Failed != 1 {
				t.Fatalf("expected one failed row, got %d", report.Failed)
			}
			summary := report.ErrorSummary()
			if summary == nil || !summary.HasCode(tt.code) {
				t.Errorf("expected error code %s, got %v", tt.code, report.Errors)
			}
			if !strings.HasPrefix(report.Errors[0], "line 2:") {
				t.Errorf("expected line prefix, got %q", report.Errors[0])
			}
			if gw.CountGuests() != 0 {
				t.Errorf("expected nothing persisted, got %d guests", gw.CountGuests())
			}
		})
	}
}

func TestOccupantCounts(t *testing.T) {
	tests := []struct {
		name        string
		adults      string
		children    string
		wantFailed  bool
		wantAdults  int
		wantWarning string
	}{
		{name: "digits", adults: "3", children: "1", wantAdults: 3},
		{name: "decimal adults", adults: "2.0", children: "0", wantFailed: true},
		{name: "negative children", adults: "2", children: "-1", wantFailed: true},
		{name: "overflowing adults", adults: "99999999999999999999", children: "0", wantAdults: 1,
			wantWarning: `line 2: adults value "99999999999999999999" ignored`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := store.NewMemoryGateway()
			row := fmt.Sprintf(`HMOCC1,Confirmada,Ana Souza,,%s,%s,0,10/04/2024,12/04/2024,2,01/03/2024,Casa da Praia,"R$ 800,00"`,
				tt.adults, tt.children)
			report := importFile(t, gw, airbnbHeader+row+"\n", nil)

			if tt.wantFailed {
				summary := report.ErrorSummary()
				if report.Failed != 1 || summary == nil || !summary.HasCode(errors.CodeInvalidValue) {
					t.Fatalf("expected invalid value failure, got failed=%d errors=%v", report.Failed, report.Errors)
				}
				if n, _ := gw.CountReservations(context.Background()); n != 0 {
					t.Errorf("expected nothing persisted, got %d reservations", n)
				}
				return
			}

			if !report.Success() {
				t.Fatalf("unexpected errors: %v", report.Errors)
			}
			if r := mustFind(t, gw, "HMOCC1"); r.Adults != tt.wantAdults {
				t.Errorf("expected %d adults, got %d", tt.wantAdults, r.Adults)
			}
			if tt.wantWarning == "" {
				return
			}
			found := false
			for _, w := range report.Warnings {
				if w == tt.wantWarning {
					found = true
				}
			}
			if !found {
				t.Errorf("expected warning %q, got %v", tt.wantWarning, report.Warnings)
			}
		})
	}
}

func TestAmountFallbackWarning(t *testing.T) {
	gw := store.NewMemoryGateway()
	report := importFile(t, gw, pendingHeader+`HM3,Ana,01/03/2024,25/03/2024,28/03/2024,3,abc,"12,50",,,`+"\n", nil)

	if !report.Success() {
		t.Fatalf("expected malformed amount to keep the row, got %v", report.Errors)
	}
	r := mustFind(t, gw, "HM3")
	if !r.GrossValue.IsZero() {
		t.Errorf("expected zero gross value, got %s", r.GrossValue)
	}
	if !r.ServiceFee.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("expected service fee 12.50, got %s", r.ServiceFee)
	}
	if r.Status != models.StatusPending {
		t.Errorf("expected pending status for future stay in pending export, got %s", r.Status)
	}

	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, `amount "abc" in gross_value`) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected amount warning, got %v", report.Warnings)
	}
}

func TestHistoricalSkipsPayoutRows(t *testing.T) {
	gw := store.NewMemoryGateway()
	content := historicalHeader +
		`Payout,,,,,,,"1.000,00",,,,` + "\n" +
		`Reserva,HM9,Paulo,01/03/2024,25/03/2024,28/03/2024,3,"1.000,00",,,,` + "\n"

	report := importFile(t, gw, content, nil)

	if report.Skipped != 1 || report.Created != 1 || !report.Success() {
		t.Errorf("expected 1 skipped and 1 created, got skipped=%d created=%d errors=%v",
			report.Skipped, report.Created, report.Errors)
	}
	if r := mustFind(t, gw, "HM9"); r.Status != models.StatusConfirmed {
		t.Errorf("expected confirmed status, got %s", r.Status)
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemoryGateway()
	importFile(t, gw, pendingHeader+`HM5,Ana,01/03/2024,19/03/2024,22/03/2024,3,100,,,,`+"\n", nil)

	r := mustFind(t, gw, "HM5")
	if r.Status != models.StatusCheckedIn {
		t.Fatalf("expected checked-in stay, got %s", r.Status)
	}
	r.Status = models.StatusCheckedOut
	if err := gw.UpdateReservation(ctx, r); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	importFile(t, gw, pendingHeader+`HM5,Ana,01/03/2024,19/03/2024,22/03/2024,3,100,,,,`+"\n", nil)
	if got := mustFind(t, gw, "HM5").Status; got != models.StatusCheckedOut {
		t.Errorf("expected status to stay checked out, got %s", got)
	}

	importFile(t, gw, pendingHeader+`HM5,Ana,01/03/2024,19/03/2024,22/03/2024,3,100,,,,`+"\n",
		func(c *Config) { c.StatusPolicy = "overwrite" })
	if got := mustFind(t, gw, "HM5").Status; got != models.StatusCheckedIn {
		t.Errorf("expected overwrite policy to recompute status, got %s", got)
	}
}

func seedCodes(t *testing.T, gw store.Gateway, codes ...string) {
	t.Helper()
	ctx := context.Background()
	guest, _, _ := gw.GetOrCreateGuest(ctx, "Someone", "")
	platform, _ := gw.GetOrCreatePlatform(ctx, "Airbnb")
	for _, code := range codes {
		err := gw.CreateReservation(ctx, &models.Reservation{
			PrimaryGuestID:   guest.ID,
			PlatformID:       platform.ID,
			ConfirmationCode: code,
			BookingDate:      fixedNow,
			CheckInDate:      fixedNow,
			CheckOutDate:     fixedNow,
			Status:           models.StatusConfirmed,
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

// takenCodesGateway reports every confirmation code as already used
type takenCodesGateway struct {
	store.Gateway
}

func (g *takenCodesGateway) WithinTx(ctx context.Context, fn func(store.Gateway) error) error {
	return g.Gateway.WithinTx(ctx, func(tx store.Gateway) error {
		return fn(&takenCodesGateway{Gateway: tx})
	})
}

func (g *takenCodesGateway) ReservationCodeExists(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func TestSyntheticCodesSkipTakenValues(t *testing.T) {
	gw := store.NewMemoryGateway()
	seedCodes(t, gw, "AUTO000001", "AUTO000002", "AUTO7", "AUTOMATIC", "HM000009")

	row := pendingHeader + `,Nova Pessoa,01/03/2024,25/03/2024,28/03/2024,,,,,,` + "\n"

	report := importFile(t, gw, row, nil)
	if report.Created != 1 || report.Rows[0].Code != "AUTO000008" {
		t.Errorf("expected AUTO000008, got %+v", report.Rows)
	}

	exhausted := importFile(t, &takenCodesGateway{Gateway: gw},
		pendingHeader+`,Outra Pessoa,01/03/2024,25/03/2024,28/03/2024,,,,,,`+"\n",
		func(c *Config) { c.MaxCodeAttempts = 3 })
	summary := exhausted.ErrorSummary()
	if summary == nil || !summary.HasCode(errors.CodeCodeExhausted) {
		t.Errorf("expected code exhaustion error, got %v", exhausted.Errors)
	}
}

func TestSyntheticCodesContinueAcrossRuns(t *testing.T) {
	gw := store.NewMemoryGateway()

	codes := make([]string, 0, 1000)
	for i := 1; i <= 1000; i++ {
		codes = append(codes, fmt.Sprintf("AUTO%06d", i))
	}
	seedCodes(t, gw, codes...)

	content := pendingHeader +
		`,Nova Pessoa,01/03/2024,25/03/2024,28/03/2024,,,,,,` + "\n" +
		`,Outra Pessoa,01/03/2024,26/03/2024,28/03/2024,,,,,,` + "\n"

	report := importFile(t, gw, content, nil)
	if report.Created != 2 || len(report.Errors) != 0 {
		t.Fatalf("expected two created reservations, got created=%d errors=%v", report.Created, report.Errors)
	}
	if report.Rows[0].Code != "AUTO001001" || report.Rows[1].Code != "AUTO001002" {
		t.Errorf("expected AUTO001001 and AUTO001002, got %+v", report.Rows)
	}

	next := importFile(t, gw, pendingHeader+`,Terceira Pessoa,01/03/2024,27/03/2024,28/03/2024,,,,,,`+"\n",
		func(c *Config) { c.MaxCodeAttempts = 1 })
	if next.Created != 1 || next.Rows[0].Code != "AUTO001003" {
		t.Errorf("expected AUTO001003 from a fresh run, got %+v %v", next.Rows, next.Errors)
	}
}

// failingGateway injects storage failures into the row transaction
type failingGateway struct {
	store.Gateway
	err error
}

func (f *failingGateway) WithinTx(ctx context.Context, fn func(store.Gateway) error) error {
	return f.Gateway.WithinTx(ctx, func(tx store.Gateway) error {
		return fn(&failingGateway{Gateway: tx, err: f.err})
	})
}

func (f *failingGateway) CreateReservation(ctx context.Context, r *models.Reservation) error {
	return f.err
}

func TestPersistenceErrorsRollBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"duplicate key", fmt.Errorf("insert: %w", store.ErrDuplicateKey), errors.CodeDuplicateKey},
		{"storage failure", stderrors.New("connection reset"), errors.CodeStorageFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryGateway()
			gw := &failingGateway{Gateway: mem, err: tt.err}

			report := importFile(t, gw, pendingHeader+`HM7,Ana,01/03/2024,25/03/2024,28/03/2024,,,,,,`+"\n", nil)

			summary := report.ErrorSummary()
			if summary == nil || !summary.HasCode(tt.code) || !summary.HasCategory(errors.CategoryPersistence) {
				t.Fatalf("expected %s persistence error, got %v", tt.code, report.Errors)
			}
			if mem.CountGuests() != 0 {
				t.Errorf("expected guest creation to be rolled back, got %d guests", mem.CountGuests())
			}
		})
	}
}

func TestBatchErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("file not found", func(t *testing.T) {
		s := newTestSession(t, store.NewMemoryGateway(), nil)
		_, err := s.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.csv"))
		ie, ok := errors.AsImportError(err)
		if !ok || ie.Code != errors.CodeFileNotFound || !ie.IsBatchLevel() {
			t.Errorf("expected batch file_not_found error, got %v", err)
		}
	})

	t.Run("unknown layout", func(t *testing.T) {
		s := newTestSession(t, store.NewMemoryGateway(), nil)
		_, err := s.ImportReader(ctx, "odd.csv", strings.NewReader("a,b,c\n1,2,3\n"))
		ie, ok := errors.AsImportError(err)
		if !ok || ie.Code != errors.CodeUnknownSchema {
			t.Errorf("expected unknown_schema error, got %v", err)
		}
	})

	t.Run("missing column for configured schema", func(t *testing.T) {
		s := newTestSession(t, store.NewMemoryGateway(), func(c *Config) { c.Schema = parsers.SchemaHistorical })
		_, err := s.ImportReader(ctx, "pending.csv", strings.NewReader(pendingHeader))
		ie, ok := errors.AsImportError(err)
		if !ok || ie.Code != errors.CodeMissingColumn {
			t.Errorf("expected missing_column error, got %v", err)
		}
	})

	t.Run("invalid encoding", func(t *testing.T) {
		s := newTestSession(t, store.NewMemoryGateway(), nil)
		_, err := s.ImportReader(ctx, "latin1.csv", strings.NewReader(pendingHeader+"HM1,Jos\xe9,01/03/2024,10/03/2024,15/03/2024,,,,,,\n"))
		ie, ok := errors.AsImportError(err)
		if !ok || ie.Code != errors.CodeEncodingError {
			t.Errorf("expected encoding_error, got %v", err)
		}
	})

	t.Run("invalid encoding after many valid rows", func(t *testing.T) {
		var b strings.Builder
		b.WriteString(pendingHeader)
		for i := 1; b.Len() < 100*1024; i++ {
			fmt.Fprintf(&b, "HM%06d,Hóspede %d,01/03/2024,25/03/2024,28/03/2024,3,100,,,,\n", i, i)
		}
		b.WriteString("HMLAST,Jos\xe9,01/03/2024,25/03/2024,28/03/2024,3,100,,,,\n")

		gw := store.NewMemoryGateway()
		report, err := newTestSession(t, gw, nil).ImportFile(ctx, writeCSV(t, b.String()))
		ie, ok := errors.AsImportError(err)
		if !ok || ie.Code != errors.CodeEncodingError || !ie.IsBatchLevel() {
			t.Fatalf("expected batch encoding_error, got report=%v err=%v", report, err)
		}
		if n, _ := gw.CountReservations(ctx); n != 0 || gw.CountGuests() != 0 {
			t.Errorf("expected nothing persisted, got %d reservations and %d guests", n, gw.CountGuests())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newTestSession(t, store.NewMemoryGateway(), nil)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.ImportReader(cancelled, "rows.csv", strings.NewReader(pendingHeader+`HM1,Ana,01/03/2024,25/03/2024,28/03/2024,,,,,,`+"\n"))
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestEmptyFile(t *testing.T) {
	gw := store.NewMemoryGateway()
	report := importFile(t, gw, "", nil)

	result := report.Result()
	if !result.Success || result.Imported != 0 || len(result.Errors) != 0 {
		t.Errorf("expected successful empty import, got %+v", result)
	}
}

func TestHeaderOnlyAndBOM(t *testing.T) {
	gw := store.NewMemoryGateway()
	report := importFile(t, gw, "\ufeff"+pendingHeader+"\n,,,,,,,,,,\n", nil)

	if report.Attempted != 0 || !report.Success() {
		t.Errorf("expected nothing attempted, got attempted=%d errors=%v", report.Attempted, report.Errors)
	}
	if report.Schema != string(parsers.SchemaPending) {
		t.Errorf("expected BOM-prefixed header to be detected as pending, got %q", report.Schema)
	}
}

func TestProcessRowDetectsSchema(t *testing.T) {
	gw := store.NewMemoryGateway()
	s := newTestSession(t, gw, nil)

	outcome := s.ProcessRow(context.Background(), 2, map[string]string{
		"Código de confirmação": "HMX",
		"Status":                "Confirmada",
		"Nome do hóspede":       "Lia",
		"Reservado":             "01/03/2024",
		"Data de início":        "25/03/2024",
		"Data de término":       "27/03/2024",
		"Ganhos":                "300",
	})
	if outcome != reporter.OutcomeCreated {
		t.Fatalf("expected created outcome, got %s (%v)", outcome, s.Report().Errors)
	}
	if r := mustFind(t, gw, "HMX"); !r.GrossValue.Equal(decimal.NewFromInt(300)) || r.Adults != 1 {
		t.Errorf("unexpected reservation %+v", r)
	}

	outcome = s.ProcessRow(context.Background(), 3, map[string]string{"Código de confirmação": "HMY"})
	if outcome != reporter.OutcomeFailed {
		t.Errorf("expected row without guest to fail, got %s", outcome)
	}
}

func TestNewSessionValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateOrder = "YMD"
	_, err := NewSession(store.NewMemoryGateway(), cfg)
	ie, ok := errors.AsImportError(err)
	if !ok || ie.Category != errors.CategoryConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}

	if _, err := NewSession(nil, nil); err == nil {
		t.Error("expected error for nil gateway")
	}

	s, err := NewSession(store.NewMemoryGateway(), nil, WithLogger(logger.NewDiscardLogger()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RunID() == "" {
		t.Error("expected generated run id")
	}
}
