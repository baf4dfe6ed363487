package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

func readFile(path string, cfg *Configuration) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return nil
}

func readEnv(cfg *Configuration) error {
	return envconfig.Process("", cfg)
}

// Load reads the YAML file at path, applies environment overrides
// and validates the result.
func Load(path string) (*Configuration, error) {
	cfg := Default()
	if err := readFile(path, cfg); err != nil {
		return nil, err
	}
	if err := readEnv(cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}
	for i := range cfg.EVM.Chains {
		cfg.EVM.Chains[i].applyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateChecksum(c.EVM.PublicAddress); err != nil {
		return fmt.Errorf("invalid custodial address %s: %w", c.EVM.PublicAddress, err)
	}
	for _, ch := range c.EVM.Chains {
		if err := validateChecksum(ch.ContractAddress); err != nil {
			return fmt.Errorf("invalid %s contract address %s: %w", ch.ID, ch.ContractAddress, err)
		}
	}
	return nil
}

// validateChecksum checks the EIP-55 checksum of mixed-case addresses.
// Single-case addresses carry none.
func validateChecksum(address string) error {
	digits := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return nil
	}
	return ethav.Validate("0x" + digits)
}

// LogOutputPath expands the {date} token of the configured log path.
func (c *Configuration) LogOutputPath(now time.Time) string {
	return strings.ReplaceAll(c.Logging.OutputPath, "{date}", now.Format("2006-01-02"))
}
