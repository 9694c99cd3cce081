package parsers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RowIntent is the schema-independent content of one CSV row. Values are
// kept as trimmed text; the importer parses them.
type RowIntent struct {
	ConfirmationCode string `json:"confirmation_code" validate:"omitempty,max=50"`
	GuestName        string `json:"guest_name" validate:"required,max=200"`
	NationalID       string `json:"national_id" validate:"omitempty,cpf"`
	Contact          string `json:"contact" validate:"omitempty,max=100"`
	StatusLabel      string `json:"status_label"`
	BookingDate      string `json:"booking_date" validate:"required"`
	CheckInDate      string `json:"check_in_date" validate:"required"`
	CheckOutDate     string `json:"check_out_date" validate:"required"`
	Nights           string `json:"nights"`
	Adults           string `json:"adults" validate:"omitempty,number"`
	Children         string `json:"children" validate:"omitempty,number"`
	Infants          string `json:"infants" validate:"omitempty,number"`
	GrossValue       string `json:"gross_value"`
	ServiceFee       string `json:"service_fee"`
	CleaningFee      string `json:"cleaning_fee"`
	GrossEarnings    string `json:"gross_earnings"`
	Taxes            string `json:"taxes"`
	Listing          string `json:"listing"`
}

// IntentError describes the first field of a RowIntent that failed validation
type IntentError struct {
	Field   string
	Value   string
	Rule    string
	Missing bool
}

func (e *IntentError) Error() string {
	if e.Missing {
		return fmt.Sprintf("required field '%s' is missing or empty", e.Field)
	}
	return fmt.Sprintf("field '%s' failed rule '%s' with value '%s'", e.Field, e.Rule, e.Value)
}

var rowValidator = newRowValidator()

func newRowValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("cpf", cpfField); err != nil {
		panic(err)
	}

	return validate
}

// Accepts 11 digits with optional '.' and '-' punctuation
func cpfField(fl validator.FieldLevel) bool {
	digits := 0
	for _, r := range fl.Field().String() {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == '-' || r == ' ':
		default:
			return false
		}
	}
	return digits == 11
}

// Validate checks the required fields and formats. It returns an
// *IntentError for the first failing field.
func (r *RowIntent) Validate() error {
	err := rowValidator.Struct(r)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err
	}

	first := validationErrors[0]
	return &IntentError{
		Field:   first.Field(),
		Value:   fmt.Sprintf("%v", first.Value()),
		Rule:    first.Tag(),
		Missing: first.Tag() == "required",
	}
}
