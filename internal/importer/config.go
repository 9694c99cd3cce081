package importer

import (
	"fmt"
	"strings"
	"time"

	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/internal/parsers"
	"golang-reservation-import-service/internal/status"
)

// Config controls how one import run interprets its input
type Config struct {
	Schema    parsers.SchemaKind `json:"schema"`
	DateOrder parsers.DateOrder  `json:"date_order"`
	Delimiter rune               `json:"delimiter"`

	// ColumnAliases maps a standard field name to an alternate header
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`

	Platform            string `json:"platform"`
	UnconfirmedPlatform bool   `json:"unconfirmed_platform"`
	DefaultCountryCode  string `json:"default_country_code"`
	Currency            string `json:"currency"`

	CodePrefix      string `json:"code_prefix"`
	MaxCodeAttempts int    `json:"max_code_attempts"`

	StatusPolicy status.Policy `json:"status_policy"`

	// Location is the zone in which "today" is read for status resolution
	Location *time.Location `json:"-"`

	ProgressInterval time.Duration `json:"progress_interval"`
}

// DefaultConfig returns the settings used for Airbnb exports
func DefaultConfig() *Config {
	return &Config{
		Schema:             parsers.SchemaAuto,
		DateOrder:          parsers.DateOrderDMY,
		Delimiter:          ',',
		Platform:           "Airbnb",
		DefaultCountryCode: "55",
		Currency:           models.DefaultCurrency,
		CodePrefix:         "AUTO",
		MaxCodeAttempts:    1000,
		StatusPolicy:       status.PolicyNeverRegress,
		Location:           time.Local,
		ProgressInterval:   5 * time.Second,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := parsers.ParseSchemaKind(string(c.Schema)); err != nil {
		return err
	}
	if !c.DateOrder.IsValid() {
		return fmt.Errorf("invalid date order '%s': must be DMY or MDY", c.DateOrder)
	}
	if strings.TrimSpace(c.Platform) == "" {
		return fmt.Errorf("platform name cannot be empty")
	}
	if strings.TrimSpace(c.CodePrefix) == "" {
		return fmt.Errorf("code prefix cannot be empty")
	}
	if c.MaxCodeAttempts <= 0 {
		return fmt.Errorf("max code attempts must be positive, got %d", c.MaxCodeAttempts)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got '%s'", c.Currency)
	}
	if _, err := status.ParsePolicy(string(c.StatusPolicy)); err != nil {
		return err
	}
	for _, r := range c.DefaultCountryCode {
		if r < '0' || r > '9' {
			if r == '+' {
				continue
			}
			return fmt.Errorf("default country code must be numeric, got '%s'", c.DefaultCountryCode)
		}
	}
	return nil
}

func (c *Config) parseConfig() *parsers.ParseConfig {
	pc := parsers.DefaultParseConfig()
	if c.Delimiter != 0 {
		pc.Delimiter = c.Delimiter
	}
	return pc
}
