package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: LEDGER_SERVER_ADDR and so on.
const EnvPrefix = "LEDGER"

// AppConfig is the runtime configuration shared by the CLI and the server.
type AppConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Extract  ExtractConfig  `mapstructure:"extract"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	BodyLimit int    `mapstructure:"body_limit"` // bytes
}

type ProfilesConfig struct {
	Path string `mapstructure:"path"`
}

type OCRConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Language string `mapstructure:"language"`
}

type ExtractConfig struct {
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit", 32<<20)
	v.SetDefault("profiles.path", "")
	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.language", "spa")
	v.SetDefault("extract.debug", false)
}

// LoadEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from cfgFile, or from statement-ledger.yaml in
// the working directory or $HOME/.config/statement-ledger when cfgFile is
// empty, with LEDGER_* environment variables on top.
func Load(v *viper.Viper, cfgFile string) (*AppConfig, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("statement-ledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "statement-ledger"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Server.BodyLimit <= 0 {
		return nil, fmt.Errorf("server.body_limit must be positive, got %d", cfg.Server.BodyLimit)
	}
	return &cfg, nil
}
