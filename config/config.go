package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	KeyEncryption KeyEncryptionConfig `mapstructure:"key_encryption"`
	Referral      ReferralConfig      `mapstructure:"referral"`
	Wheel         WheelConfig         `mapstructure:"wheel"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug / release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// KeyEncryptionConfig holds the secret used to seal pool private keys at
// rest (AES-256-GCM under a PBKDF2-derived key).
type KeyEncryptionConfig struct {
	Secret string `mapstructure:"secret"`
}

type ReferralConfig struct {
	Bonus string `mapstructure:"bonus"` // UBT amount credited to the referrer
}

type WheelConfig struct {
	SpinFee string `mapstructure:"spin_fee"` // UBT cost per spin
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// ENV overrides YAML
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.ttl", "168h")
	v.SetDefault("referral.bonus", "10")
	v.SetDefault("wheel.spin_fee", "1")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
