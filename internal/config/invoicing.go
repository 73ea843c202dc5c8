package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// InvoicingConfig holds finance parameters that change without a release:
// oracle invoice payment terms, reminder lead times, annual CPI percentages
// and the lodgement number prefix per record type.
type InvoicingConfig struct {
	PaymentTermDays        int                `mapstructure:"paymentTermDays"`
	ComplianceReminderDays int                `mapstructure:"complianceReminderDays"`
	InvoiceReminderDays    int                `mapstructure:"invoiceReminderDays"`
	CPIPercentages         map[string]float64 `mapstructure:"cpiPercentages"`
	LodgementPrefixes      map[string]string  `mapstructure:"lodgementPrefixes"`
}

func DefaultInvoicingConfig() InvoicingConfig {
	return InvoicingConfig{
		PaymentTermDays:        30,
		ComplianceReminderDays: 14,
		InvoiceReminderDays:    7,
		CPIPercentages:         map[string]float64{},
		LodgementPrefixes: map[string]string{
			"proposal":            "A",
			"competitive_process": "CP",
			"compliance":          "C",
			"approval":            "L",
			"invoice":             "I",
		},
	}
}

// InvoicingConfigHolder serves the current invoicing config and hot-reloads
// it when the mounted file changes.
type InvoicingConfigHolder struct {
	current atomic.Value // holds InvoicingConfig
}

func NewInvoicingConfigHolder() (*InvoicingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("invoicing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tenure")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TENURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoicingConfig()
	v.SetDefault("invoicing.paymentTermDays", defaults.PaymentTermDays)
	v.SetDefault("invoicing.complianceReminderDays", defaults.ComplianceReminderDays)
	v.SetDefault("invoicing.invoiceReminderDays", defaults.InvoiceReminderDays)
	v.SetDefault("invoicing.lodgementPrefixes", defaults.LodgementPrefixes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg InvoicingConfig
	if err := v.UnmarshalKey("invoicing", &cfg); err != nil {
		return nil, err
	}
	cfg = withInvoicingDefaults(cfg)
	if err := validateInvoicingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &InvoicingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvoicingConfig
		if err := v.UnmarshalKey("invoicing", &updated); err != nil {
			log.Printf("[invoicing-config] reload failed: %v", err)
			return
		}
		updated = withInvoicingDefaults(updated)
		if err := validateInvoicingConfig(updated); err != nil {
			log.Printf("[invoicing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[invoicing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticInvoicingConfigHolder wraps a fixed config with no file watch,
// used by tests and one-shot tooling.
func NewStaticInvoicingConfigHolder(cfg InvoicingConfig) *InvoicingConfigHolder {
	holder := &InvoicingConfigHolder{}
	holder.current.Store(withInvoicingDefaults(cfg))
	return holder
}

func (h *InvoicingConfigHolder) Get() InvoicingConfig {
	return h.current.Load().(InvoicingConfig)
}

func withInvoicingDefaults(cfg InvoicingConfig) InvoicingConfig {
	defaults := DefaultInvoicingConfig()
	if cfg.PaymentTermDays == 0 {
		cfg.PaymentTermDays = defaults.PaymentTermDays
	}
	if cfg.ComplianceReminderDays == 0 {
		cfg.ComplianceReminderDays = defaults.ComplianceReminderDays
	}
	if cfg.InvoiceReminderDays == 0 {
		cfg.InvoiceReminderDays = defaults.InvoiceReminderDays
	}
	if cfg.CPIPercentages == nil {
		cfg.CPIPercentages = map[string]float64{}
	}
	if len(cfg.LodgementPrefixes) == 0 {
		cfg.LodgementPrefixes = defaults.LodgementPrefixes
	}
	return cfg
}

func validateInvoicingConfig(cfg InvoicingConfig) error {
	if cfg.PaymentTermDays < 0 || cfg.ComplianceReminderDays < 0 || cfg.InvoiceReminderDays < 0 {
		return errors.New("invoicing: day offsets must not be negative")
	}
	for recordType, prefix := range cfg.LodgementPrefixes {
		if strings.TrimSpace(prefix) == "" {
			return errors.New("invoicing: empty lodgement prefix for " + recordType)
		}
	}
	return nil
}
