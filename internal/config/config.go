package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ListenAddr string

	Owner          string
	Venue          string
	FeeSink        string
	OperatorPayout string
	Operator       string

	WithdrawFeeBps uint32
	ProcessingFee  string

	JournalPath      string
	StatePath        string
	PostgresDSN      string
	SnapshotInterval time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration

	DevAccounts   []string
	DevMintAmount string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("withdraw-fee-bps", uint32(50))
	v.SetDefault("processing-fee", "0")
	v.SetDefault("journal", "./data/settlements.jsonl")
	v.SetDefault("state", "./data/state.json")
	v.SetDefault("snapshot-interval", 30*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("dev-mint-amount", "0")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ListenAddr:       v.GetString("listen"),
		Owner:            v.GetString("owner"),
		Venue:            v.GetString("venue"),
		FeeSink:          v.GetString("fee-sink"),
		OperatorPayout:   v.GetString("operator-payout"),
		Operator:         v.GetString("operator"),
		WithdrawFeeBps:   uint32(v.GetUint("withdraw-fee-bps")),
		ProcessingFee:    v.GetString("processing-fee"),
		JournalPath:      v.GetString("journal"),
		StatePath:        v.GetString("state"),
		PostgresDSN:      v.GetString("postgres-dsn"),
		SnapshotInterval: v.GetDuration("snapshot-interval"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		DevAccounts:      getStringSlice(v, "dev-accounts"),
		DevMintAmount:    v.GetString("dev-mint-amount"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the address-valued settings that the engine cannot run
// without.
func (c Config) Validate() error {
	required := map[string]string{
		"owner":           c.Owner,
		"venue":           c.Venue,
		"fee-sink":        c.FeeSink,
		"operator-payout": c.OperatorPayout,
		"operator":        c.Operator,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s is not a valid address: %q", name, value)
		}
	}
	if c.WithdrawFeeBps > 10_000 {
		return fmt.Errorf("withdraw-fee-bps must not exceed 10000, got %d", c.WithdrawFeeBps)
	}
	for _, account := range c.DevAccounts {
		if !common.IsHexAddress(account) {
			return fmt.Errorf("dev account is not a valid address: %q", account)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
