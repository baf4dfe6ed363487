package config

import "time"

type Configuration struct {
	// Server config
	Server struct {
		Listen        string `yaml:"listen" envconfig:"listen"`
		UseSSL        bool   `yaml:"ssl" envconfig:"ssl"`
		CertFile      string `yaml:"cert_file" envconfig:"cert_file"`
		KeyFile       string `yaml:"key_file" envconfig:"key_file"`
		RedisHost     string `yaml:"redis_host" envconfig:"redis_host" validate:"required"`
		RedisPort     int    `yaml:"redis_port" envconfig:"redis_port" validate:"required,gt=0"`
		RedisPassword string `yaml:"redis_password" envconfig:"redis_password"`
		RedisDB       int    `yaml:"redis_db" envconfig:"redis_db"`
	} `yaml:"server"`
	// BGL-related config
	BGL struct {
		Host          string        `yaml:"host" envconfig:"host" validate:"required"`
		Port          int           `yaml:"port" envconfig:"port" validate:"required,gt=0"`
		Confirmations int           `yaml:"confirmations" envconfig:"confirmations" validate:"gte=1"`
		RPCTimeout    time.Duration `yaml:"rpc_timeout" envconfig:"rpc_timeout"`
		// important private stuff
		RPCUser     string `yaml:"rpc_user" envconfig:"rpc_user"`
		RPCPassword string `yaml:"rpc_pass" envconfig:"rpc_pass"`
		WalletName  string `yaml:"wallet_name" envconfig:"wallet_name"`
	} `yaml:"BGL"`
	// EVM-related config, the custodial account is the same on every chain
	EVM struct {
		PublicAddress string        `yaml:"address" envconfig:"address" validate:"required,eth_addr"`
		PrivateKey    string        `yaml:"private_key" envconfig:"private_key" validate:"required"`
		Chains        []ChainConfig `yaml:"chains" ignored:"true" validate:"required,min=1,unique=ID,dive"`
	} `yaml:"EVM"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	// percent of every deposit kept by the bridge
	FeePercentage int `yaml:"fee_percentage" envconfig:"fee_percentage" validate:"gte=0,lt=100"`
}

// EVM-chains configs
type ChainConfig struct {
	ID              string        `yaml:"id" validate:"required,alphanum"` // short name stored on records, e.g. "eth", "bsc"
	Name            string        `yaml:"name"`
	ChainID         int64         `yaml:"chain_id" validate:"required,gt=0"`
	RPCList         []string      `yaml:"rpc" validate:"required,min=1,dive,url"`
	WSURL           string        `yaml:"ws" validate:"omitempty,url"`
	ContractAddress string        `yaml:"contract" validate:"required,eth_addr"` // WBGL token address
	Confirmations   int           `yaml:"confirmations" validate:"gte=1"`
	Decimals        int           `yaml:"decimals" validate:"gte=0,lte=36"`
	BlockBatch      uint64        `yaml:"block_batch"`
	LookbackBlocks  uint64        `yaml:"lookback_blocks"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	// gas price is node price * GasPricePercent / 100, gas limit is estimate * GasLimitMultiplier
	GasPricePercent    int64  `yaml:"gas_price_percent" validate:"gte=0"`
	GasLimitMultiplier uint64 `yaml:"gas_limit_multiplier" validate:"gte=0"`
}

type EngineConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval" envconfig:"poll_interval"`
	ConfirmationInterval time.Duration `yaml:"confirmation_interval" envconfig:"confirmation_interval"`
	ResubscribeDelay     time.Duration `yaml:"resubscribe_delay" envconfig:"resubscribe_delay"`
	TransferValidity     time.Duration `yaml:"transfer_validity" envconfig:"transfer_validity"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" envconfig:"format" validate:"omitempty,oneof=json console"`
	OutputPath string `yaml:"output_path" envconfig:"output_path"`
}

const (
	DefaultBGLConfirmations   = 6
	DefaultEVMConfirmations   = 12
	DefaultTokenDecimals      = 18
	DefaultBlockBatch         = 512
	DefaultLookbackBlocks     = 1000
	DefaultGasPricePercent    = 125
	DefaultGasLimitMultiplier = 2
	DefaultRPCTimeout         = 30 * time.Second
)

// Default returns a configuration with every optional value filled in.
// Files and environment are decoded on top of it.
func Default() *Configuration {
	cfg := &Configuration{}
	cfg.Server.Listen = ":8080"
	cfg.Server.RedisHost = "127.0.0.1"
	cfg.Server.RedisPort = 6379
	cfg.BGL.Confirmations = DefaultBGLConfirmations
	cfg.BGL.RPCTimeout = DefaultRPCTimeout
	cfg.Engine = EngineConfig{
		PollInterval:         60 * time.Second,
		ConfirmationInterval: 60 * time.Second,
		ResubscribeDelay:     10 * time.Second,
		TransferValidity:     7 * 24 * time.Hour,
	}
	cfg.Logging = LoggingConfig{
		Level:      "info",
		Format:     "json",
		OutputPath: "logs/log_{date}.txt",
	}
	cfg.FeePercentage = 1
	return cfg
}

// UnmarshalYAML presets defaults that zero cannot stand for, so an explicit
// zero in the file stays zero and fails validation.
func (c *ChainConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain ChainConfig
	*c = ChainConfig{Confirmations: DefaultEVMConfirmations}
	return unmarshal((*plain)(c))
}

func (c *ChainConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.Decimals == 0 {
		c.Decimals = DefaultTokenDecimals
	}
	if c.BlockBatch == 0 {
		c.BlockBatch = DefaultBlockBatch
	}
	if c.LookbackBlocks == 0 {
		c.LookbackBlocks = DefaultLookbackBlocks
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = DefaultRPCTimeout
	}
	if c.GasPricePercent == 0 {
		c.GasPricePercent = DefaultGasPricePercent
	}
	if c.GasLimitMultiplier == 0 {
		c.GasLimitMultiplier = DefaultGasLimitMultiplier
	}
}

// Chain returns the config of the chain with the given short id.
func (c *Configuration) Chain(id string) (ChainConfig, bool) {
	for _, ch := range c.EVM.Chains {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChainConfig{}, false
}
