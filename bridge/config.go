package bridge

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ProcessorSandbox = "sandbox"
	ProcessorISO8583 = "iso8583"
)

// Config is a configuration for the bridge application
type Config struct {
	HTTPAddr  string `validate:"required"`
	Processor string `validate:"oneof=sandbox iso8583"`
	// ISO8583Addr is the issuer host the iso8583 processor connects to.
	ISO8583Addr        string        `validate:"required_if=Processor iso8583"`
	ISO8583SendTimeout time.Duration `validate:"gte=0"`
	// Currency is stamped on every charge at authorization time.
	Currency string `validate:"len=3,uppercase"`
	// StrictNumericParsing rejects non-numeric expiry and amount fields with InvalidArgument
	// instead of quietly storing 0.
	StrictNumericParsing bool
	// SandboxOTP is the code the sandbox processor accepts for OTP challenges.
	SandboxOTP string `validate:"required_if=Processor sandbox"`
	// ChallengeTimeout bounds how long a presented OTP/3DS challenge waits for the customer.
	ChallengeTimeout time.Duration `validate:"gt=0"`
	// ExpiryTZ is an IANA timezone name for card expiry checks (e.g., "Africa/Lagos").
	ExpiryTZ string
	LogLevel string `validate:"oneof=debug info warn error"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:           "localhost:9090",
		Processor:          ProcessorSandbox,
		ISO8583Addr:        "localhost:8583",
		ISO8583SendTimeout: 10 * time.Second,
		Currency:           "NGN",
		SandboxOTP:         "123456",
		ChallengeTimeout:   5 * time.Minute,
		LogLevel:           "info",
	}
}

var validate = validator.New()

// LoadConfig overlays BRIDGE_* environment variables on DefaultConfig and validates the result.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.HTTPAddr = getenv("BRIDGE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Processor = getenv("BRIDGE_PROCESSOR", cfg.Processor)
	cfg.ISO8583Addr = getenv("BRIDGE_ISO8583_ADDR", cfg.ISO8583Addr)
	cfg.Currency = getenv("BRIDGE_CURRENCY", cfg.Currency)
	cfg.SandboxOTP = getenv("BRIDGE_SANDBOX_OTP", cfg.SandboxOTP)
	cfg.ExpiryTZ = getenv("BRIDGE_EXPIRY_TZ", cfg.ExpiryTZ)
	cfg.LogLevel = getenv("BRIDGE_LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.StrictNumericParsing, err = strconv.ParseBool(getenv("BRIDGE_STRICT_NUMERIC", "false")); err != nil {
		return nil, fmt.Errorf("parsing BRIDGE_STRICT_NUMERIC: %w", err)
	}
	if cfg.ISO8583SendTimeout, err = time.ParseDuration(getenv("BRIDGE_ISO8583_SEND_TIMEOUT", cfg.ISO8583SendTimeout.String())); err != nil {
		return nil, fmt.Errorf("parsing BRIDGE_ISO8583_SEND_TIMEOUT: %w", err)
	}
	if cfg.ChallengeTimeout, err = time.ParseDuration(getenv("BRIDGE_CHALLENGE_TIMEOUT", cfg.ChallengeTimeout.String())); err != nil {
		return nil, fmt.Errorf("parsing BRIDGE_CHALLENGE_TIMEOUT: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
