package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Banano      BananoConfig      `mapstructure:"banano"`
	Blockchain  BlockchainConfig  `mapstructure:"blockchain"`
	Swaps       SwapsConfig       `mapstructure:"swaps"`
	Withdrawals WithdrawalsConfig `mapstructure:"withdrawals"`
	Rebalancing RebalancingConfig `mapstructure:"rebalancing"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains the health/metrics HTTP listener settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RedisConfig contains the ledger store and queue backend settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BananoConfig contains source-chain client settings. WalletID names a
// wallet held by the node, which signs send and receive blocks on our
// behalf.
type BananoConfig struct {
	RPCURL              string   `mapstructure:"rpc_url"`
	WSUrl               string   `mapstructure:"ws_url"`
	DepositsWallet      string   `mapstructure:"deposits_wallet"`
	ColdWallet          string   `mapstructure:"cold_wallet"`
	WalletID            string   `mapstructure:"wallet_id"`
	PendingPollSchedule string   `mapstructure:"pending_poll_schedule"`
	Blacklist           []string `mapstructure:"blacklist"`
}

// BlockchainConfig contains destination-chain client settings
type BlockchainConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	NetworkName     string        `mapstructure:"network_name"`
	ChainID         int64         `mapstructure:"chain_id"`
	WBANContract    string        `mapstructure:"wban_contract"`
	PrivateKey      string        `mapstructure:"private_key"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	StartFromBlock  int64         `mapstructure:"start_from_block"`
	ScanJobSchedule string        `mapstructure:"scan_job_schedule"`
}

// SwapsConfig contains swap orchestration settings
type SwapsConfig struct {
	// Mode selects how mints are authorized: "receipt" forges an off-chain
	// signed receipt redeemable by the user, "direct" submits the mint
	// transaction from the bridge wallet.
	Mode             string `mapstructure:"mode"`
	GaslessEnabled   bool   `mapstructure:"gasless_enabled"`
	GaslessThreshold string `mapstructure:"gasless_threshold"`
}

// WithdrawalsConfig contains the pending-withdrawal retry ladder settings
type WithdrawalsConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// RebalancingConfig contains hot/cold wallet redistribution settings
type RebalancingConfig struct {
	HotWalletMinimum string `mapstructure:"hot_wallet_minimum"`
	ColdRatio        int64  `mapstructure:"cold_ratio"`
}

// ScannerConfig contains destination-chain replay settings
type ScannerConfig struct {
	ChunkSize int64 `mapstructure:"chunk_size"`
}

// QueueConfig contains job queue settings
type QueueConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Attempts    int           `mapstructure:"attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3000)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Banano defaults
	viper.SetDefault("banano.rpc_url", "http://localhost:7072")
	viper.SetDefault("banano.ws_url", "ws://localhost:7074")
	viper.SetDefault("banano.pending_poll_schedule", "0 */5 * * * *")

	// Blockchain defaults
	viper.SetDefault("blockchain.network_name", "bsc")
	viper.SetDefault("blockchain.gas_limit", 300000)
	viper.SetDefault("blockchain.request_timeout", "30s")
	viper.SetDefault("blockchain.start_from_block", 0)
	viper.SetDefault("blockchain.scan_job_schedule", "0 */5 * * * *")

	// Swaps defaults
	viper.SetDefault("swaps.mode", "receipt")
	viper.SetDefault("swaps.gasless_enabled", false)
	viper.SetDefault("swaps.gasless_threshold", "0.004")

	// Withdrawals defaults
	viper.SetDefault("withdrawals.max_attempts", 180)
	viper.SetDefault("withdrawals.retry_delay", "30s")

	// Rebalancing defaults
	viper.SetDefault("rebalancing.hot_wallet_minimum", "10000")
	viper.SetDefault("rebalancing.cold_ratio", 20)

	// Scanner defaults
	viper.SetDefault("scanner.chunk_size", 1000)

	// Queue defaults
	viper.SetDefault("queue.concurrency", 1)
	viper.SetDefault("queue.attempts", 3)
	viper.SetDefault("queue.backoff", "1s")
	viper.SetDefault("queue.job_timeout", "30s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if config.Banano.DepositsWallet == "" {
		return fmt.Errorf("banano.deposits_wallet is required")
	}
	if config.Banano.WalletID == "" {
		return fmt.Errorf("banano.wallet_id is required")
	}
	if config.Blockchain.RPCURL == "" {
		return fmt.Errorf("blockchain.rpc_url is required")
	}
	if config.Blockchain.WBANContract == "" {
		return fmt.Errorf("blockchain.wban_contract is required")
	}
	if config.Rebalancing.ColdRatio < 0 || config.Rebalancing.ColdRatio > 100 {
		return fmt.Errorf("rebalancing.cold_ratio must be between 0 and 100")
	}
	if config.Withdrawals.MaxAttempts <= 0 {
		return fmt.Errorf("withdrawals.max_attempts must be positive")
	}
	return nil
}

// Addr returns the host:port address for the redis connection
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
