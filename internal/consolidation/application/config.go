package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	consolidation "loadprofile/internal/consolidation/domain"
)

// HolidayPolicy decides what happens when holiday input cannot be parsed.
type HolidayPolicy string

const (
	// HolidayStrict aborts the run with ErrInvalidHolidayFormat.
	HolidayStrict HolidayPolicy = "strict"
	// HolidayLenient continues with no holidays and reports a warning.
	HolidayLenient HolidayPolicy = "lenient"
)

const defaultParseWorkers = 4

// Profile overrides the defaults for one site.
type Profile struct {
	Factors           map[string]float64 `yaml:"factors"`
	TariffRule        string             `yaml:"tariff_rule"`
	DuplicatePolicy   string             `yaml:"duplicate_policy"`
	SupplementaryFill string             `yaml:"supplementary_fill"`
}

// Config defines consolidation defaults.
type Config struct {
	Factors           map[string]float64 `yaml:"factors"`
	TariffRule        string             `yaml:"tariff_rule"`
	DuplicatePolicy   string             `yaml:"duplicate_policy"`
	SupplementaryFill string             `yaml:"supplementary_fill"`
	HolidayPolicy     HolidayPolicy      `yaml:"holiday_policy"`
	ParseWorkers      int                `yaml:"parse_workers"`
	Profiles          map[string]Profile `yaml:"profiles"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		TariffRule:        string(consolidation.DefaultBoundaryRule),
		DuplicatePolicy:   string(consolidation.DuplicateLastWins),
		SupplementaryFill: string(consolidation.FillZero),
		HolidayPolicy:     HolidayLenient,
		ParseWorkers:      defaultParseWorkers,
	}
}

// LoadConfig loads config from the CONSOLIDATION_CONFIG yaml file (optional)
// and applies env overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONSOLIDATION_CONFIG"); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if value := os.Getenv("CONSOLIDATION_TARIFF_RULE"); value != "" {
		cfg.TariffRule = value
	}
	if value := os.Getenv("CONSOLIDATION_DUPLICATE_POLICY"); value != "" {
		cfg.DuplicatePolicy = value
	}
	if value := os.Getenv("CONSOLIDATION_SUPPLEMENTARY_FILL"); value != "" {
		cfg.SupplementaryFill = value
	}
	if value := os.Getenv("CONSOLIDATION_HOLIDAY_POLICY"); value != "" {
		cfg.HolidayPolicy = HolidayPolicy(value)
	}
	cfg.ParseWorkers = getenvIntDefault("PARSE_WORKERS", cfg.ParseWorkers)
	return cfg, cfg.Validate()
}

// LoadConfigFile reads a yaml config on top of the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks every policy name and factor.
func (c Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return err
	}
	if _, err := consolidation.NewFactorTable(c.Factors); err != nil {
		return err
	}
	switch c.HolidayPolicy {
	case "", HolidayStrict, HolidayLenient:
	default:
		return errors.New("consolidation config: unknown holiday policy")
	}
	for name, profile := range c.Profiles {
		merged, err := c.ForProfile(name)
		if err != nil {
			return err
		}
		if _, err := merged.Options(); err != nil {
			return err
		}
		if _, err := consolidation.NewFactorTable(profile.Factors); err != nil {
			return err
		}
	}
	return nil
}

// ForProfile returns the config with the named profile merged in. An empty
// name returns the config unchanged; an unknown name is ErrUnknownProfile.
func (c Config) ForProfile(name string) (Config, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return c, nil
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return c, fmt.Errorf("%w: %q", consolidation.ErrUnknownProfile, name)
	}
	merged := c
	if len(profile.Factors) > 0 {
		merged.Factors = mergeFactors(c.Factors, profile.Factors)
	}
	if profile.TariffRule != "" {
		merged.TariffRule = profile.TariffRule
	}
	if profile.DuplicatePolicy != "" {
		merged.DuplicatePolicy = profile.DuplicatePolicy
	}
	if profile.SupplementaryFill != "" {
		merged.SupplementaryFill = profile.SupplementaryFill
	}
	return merged, nil
}

// Options resolves the engine options.
func (c Config) Options() (consolidation.Options, error) {
	rule, err := consolidation.ParseBoundaryRule(c.TariffRule)
	if err != nil {
		return consolidation.Options{}, err
	}
	duplicates, err := consolidation.ParseDuplicatePolicy(c.DuplicatePolicy)
	if err != nil {
		return consolidation.Options{}, err
	}
	fill, err := consolidation.ParseFillPolicy(c.SupplementaryFill)
	if err != nil {
		return consolidation.Options{}, err
	}
	return consolidation.Options{Rule: rule, Duplicates: duplicates, Fill: fill}, nil
}

func mergeFactors(base, override map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(override))
	for id, factor := range base {
		out[id] = factor
	}
	for id, factor := range override {
		out[id] = factor
	}
	return out
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}
