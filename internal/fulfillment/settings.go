package fulfillment

import (
	"strings"
	"time"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
)

const (
	defaultInvoiceSeries = "FCT"
	defaultBatchLockTTL  = 15 * time.Minute
)

// Settings is the batch configuration resolved once per process and passed
// to the orchestrator by value.
type Settings struct {
	InvoiceSeries  string
	CarrierService string
	PickerRole     string
	AdminRole      string
	BatchLockTTL   time.Duration
	MaxBatchSize   int
}

// SettingsFromConfig extracts batch settings from the loaded configuration.
func SettingsFromConfig(cfg config.Config) Settings {
	s := Settings{
		InvoiceSeries:  strings.TrimSpace(cfg.Invoicing.Series),
		CarrierService: strings.TrimSpace(cfg.Carrier.DefaultService),
		PickerRole:     strings.TrimSpace(cfg.Fulfillment.PickerRole),
		AdminRole:      strings.TrimSpace(cfg.Fulfillment.AdminRole),
		BatchLockTTL:   cfg.Fulfillment.BatchLockTTL,
		MaxBatchSize:   cfg.Fulfillment.MaxBatchSize,
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.InvoiceSeries == "" {
		s.InvoiceSeries = defaultInvoiceSeries
	}
	if s.BatchLockTTL <= 0 {
		s.BatchLockTTL = defaultBatchLockTTL
	}
	return s
}
