package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"assaygate/domain/governance"
	"assaygate/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Gate       GateConfig
	Inference  InferenceConfig
	Governance governance.Thresholds
	Ledger     LedgerConfig
	Database   DatabaseConfig
	Server     ServerConfig
}

// GateConfig holds calibration gate tracker thresholds
type GateConfig struct {
	// EnterWidth is the CI relative width at or below which a stable
	// observation is counted.
	EnterWidth float64

	// ExitWidth is the materially looser width whose single breach revokes
	// stability.
	ExitWidth float64

	// DriftThreshold is the relative deviation from the trailing window
	// that counts as a breach.
	DriftThreshold float64

	// StableK is the consecutive stable observations required to earn trust.
	StableK int

	// DriftWindow is the trailing-window length for the drift metric.
	DriftWindow int

	// Alpha is the chi-square CI significance level.
	Alpha float64
}

// InferenceConfig holds posterior engine settings
type InferenceConfig struct {
	ClarityThreshold float64
	AmbiguityCeiling float64
	ECEBins          int
	ECEMinSamples    int
}

// LedgerConfig holds epistemic debt ledger settings
type LedgerConfig struct {
	HardThresholdBits  float64
	RepaymentCapFactor float64
	BankruptcyRefusals int
}

// DatabaseConfig holds the audit sink connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds the status API settings
type ServerConfig struct {
	Port string
}

// Load reads configuration from the environment, with .env support for
// development setups.
func Load() (*Config, error) {
	// Ignore missing .env; production configures via real env vars
	_ = godotenv.Load()

	cfg := &Config{
		Gate:       DefaultGateConfig(),
		Inference:  DefaultInferenceConfig(),
		Governance: governance.DefaultThresholds(),
		Ledger:     DefaultLedgerConfig(),
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: getEnv("API_PORT", "8080"),
		},
	}

	var err error
	if cfg.Gate.EnterWidth, err = getFloat("GATE_ENTER_WIDTH", cfg.Gate.EnterWidth); err != nil {
		return nil, err
	}
	if cfg.Gate.ExitWidth, err = getFloat("GATE_EXIT_WIDTH", cfg.Gate.ExitWidth); err != nil {
		return nil, err
	}
	if cfg.Gate.StableK, err = getInt("GATE_STABLE_K", cfg.Gate.StableK); err != nil {
		return nil, err
	}
	if cfg.Governance.CommitThreshold, err = getFloat("COMMIT_THRESHOLD", cfg.Governance.CommitThreshold); err != nil {
		return nil, err
	}
	if cfg.Governance.NuisanceCeiling, err = getFloat("NUISANCE_CEILING", cfg.Governance.NuisanceCeiling); err != nil {
		return nil, err
	}
	if cfg.Ledger.HardThresholdBits, err = getFloat("DEBT_HARD_THRESHOLD", cfg.Ledger.HardThresholdBits); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency
func (c *Config) Validate() error {
	if c.Gate.ExitWidth <= c.Gate.EnterWidth {
		return errors.New(errors.CodeConfig, "gate exit width must be looser than enter width")
	}
	if c.Gate.StableK < 1 {
		return errors.New(errors.CodeConfig, "gate stable K must be at least 1")
	}
	if c.Governance.CommitThreshold <= 0 || c.Governance.CommitThreshold > 1 {
		return errors.New(errors.CodeConfig, "commit threshold must be in (0,1]")
	}
	if c.Inference.AmbiguityCeiling <= 0 || c.Inference.AmbiguityCeiling >= 1 {
		return errors.New(errors.CodeConfig, "ambiguity ceiling must be in (0,1)")
	}
	if c.Ledger.RepaymentCapFactor < 1 {
		return errors.New(errors.CodeConfig, "repayment cap factor must be at least 1")
	}
	return nil
}

// DefaultGateConfig returns the reference gate thresholds
func DefaultGateConfig() GateConfig {
	return GateConfig{
		EnterWidth:     0.30,
		ExitWidth:      0.50,
		DriftThreshold: 0.40,
		StableK:        3,
		DriftWindow:    5,
		Alpha:          0.05,
	}
}

// DefaultInferenceConfig returns the reference inference settings
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		ClarityThreshold: 0.15,
		AmbiguityCeiling: 0.75,
		ECEBins:          10,
		ECEMinSamples:    30,
	}
}

// DefaultLedgerConfig returns the reference ledger settings
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		HardThresholdBits:  2.0,
		RepaymentCapFactor: 1.5,
		BankruptcyRefusals: 3,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrap(errors.CodeConfig, "invalid float for "+key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrap(errors.CodeConfig, "invalid int for "+key, err)
	}
	return i, nil
}
