package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COLLAGE_ASSET_ROOT.
const EnvPrefix = "COLLAGE"

const (
	KeyConfig    = "config"
	KeyAddr      = "addr"
	KeyAssetRoot = "asset-root"
	KeyBaseURL   = "base-url"
	KeyDebug     = "debug"
	KeyTLS       = "tls"
	KeyMaxUpload = "max-upload"
	KeyLogLevel  = "log-level"
	KeyDiscovery = "discovery"

	// keyPort mirrors the bare PORT variable honoured by most hosting platforms.
	keyPort = "port"
)

const (
	DefaultAddr      = ":3000"
	DefaultAssetRoot = "WeddingPhoto"
	DefaultMaxUpload = 50 << 20
)

// Config is resolved once at startup and passed to constructors.
type Config struct {
	Addr      string
	AssetRoot string
	// BaseURL is used for template manifests that carry no base of their own.
	BaseURL   string
	Debug     bool
	TLS       bool
	MaxUpload int64
	LogLevel  string
	Discovery bool
}

// BindFlags registers the server flags on fs and binds them into v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String(KeyConfig, "", "Path to a YAML config file")
	fs.String(KeyAddr, DefaultAddr, "Listen address (PORT env sets the port when this is unset)")
	fs.String(KeyAssetRoot, DefaultAssetRoot, "Directory holding <type>/data.json manifests and assets")
	fs.String(KeyBaseURL, "", "Fallback base URL for template manifests without a base")
	fs.Bool(KeyDebug, false, "Include error details in 5xx responses")
	fs.Bool(KeyTLS, false, "Serve HTTPS with a generated self-signed certificate")
	fs.Int64(KeyMaxUpload, DefaultMaxUpload, "Maximum upload size in bytes")
	fs.String(KeyLogLevel, "info", "Log level: debug, info, warn, error")
	fs.Bool(KeyDiscovery, false, "Answer LAN discovery probes from the client")

	for _, key := range []string{KeyConfig, KeyAddr, KeyAssetRoot, KeyBaseURL, KeyDebug, KeyTLS, KeyMaxUpload, KeyLogLevel, KeyDiscovery} {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return err
		}
	}
	if err := v.BindEnv(keyPort, "PORT"); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

// Load reads the optional config file and resolves the final Config.
// Precedence: flag, environment, config file, default.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Addr:      v.GetString(KeyAddr),
		AssetRoot: v.GetString(KeyAssetRoot),
		BaseURL:   v.GetString(KeyBaseURL),
		Debug:     v.GetBool(KeyDebug),
		TLS:       v.GetBool(KeyTLS),
		MaxUpload: v.GetInt64(KeyMaxUpload),
		LogLevel:  v.GetString(KeyLogLevel),
		Discovery: v.GetBool(KeyDiscovery),
	}
	if port := v.GetString(keyPort); port != "" && !v.IsSet(KeyAddr) {
		cfg.Addr = ":" + port
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.AssetRoot == "" {
		return errors.New("asset-root must not be empty")
	}
	if c.MaxUpload <= 0 {
		return fmt.Errorf("max-upload must be positive, got %d", c.MaxUpload)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base-url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base-url must be http(s), got %q", c.BaseURL)
		}
	}
	return nil
}
