package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	BotToken       string `mapstructure:"BOT_TOKEN"`
	AdminID        int64  `mapstructure:"ADMIN_ID"`
	AdminGroupID   int64  `mapstructure:"ADMIN_GROUP_ID"`
	MongoURL       string `mapstructure:"MONGO_URL"`
	PlatformUserID string `mapstructure:"PLATFORM_USER_ID"`
	MinTopupAmount int    `mapstructure:"MIN_TOPUP_AMOUNT"`
}

var keys = []string{
	"BOT_TOKEN",
	"ADMIN_ID",
	"ADMIN_GROUP_ID",
	"MONGO_URL",
	"PLATFORM_USER_ID",
	"MIN_TOPUP_AMOUNT",
}

// Load reads configuration from the given env file and the process
// environment; environment variables win. A missing file is fine as long as
// the environment supplies the required keys.
func Load(path string) (Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	// Unmarshal only sees keys viper knows about, so each key is bound
	// explicitly; AutomaticEnv alone does not register them.
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault("MIN_TOPUP_AMOUNT", 1000)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.BotToken == "" || cfg.AdminID == 0 || cfg.MongoURL == "" {
		return cfg, fmt.Errorf("BOT_TOKEN, ADMIN_ID and MONGO_URL are required")
	}

	return cfg, nil
}
