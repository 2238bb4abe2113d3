package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "SCRIPTA"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "scripta.db"
	defaultLogLevel      = "info"
	defaultTokenTTL      = 60
	defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	defaultBlobBucket    = "scripta-media"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	TokenTTL      time.Duration

	GoogleClientID string
	GoogleJWKSURL  string

	OptimizerURL string

	BlobEndpoint      string
	BlobAccessKey     string
	BlobSecretKey     string
	BlobBucket        string
	BlobPublicBaseURL string
	BlobUseSSL        bool

	RedisAddr     string
	RedisPassword string
	NATSURL       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
	configViper.SetDefault("blob.bucket", defaultBlobBucket)
	configViper.SetDefault("blob.use_ssl", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		GoogleClientID:    configViper.GetString("google.client_id"),
		GoogleJWKSURL:     configViper.GetString("google.jwks_url"),
		OptimizerURL:      configViper.GetString("images.optimizer_url"),
		BlobEndpoint:      configViper.GetString("blob.endpoint"),
		BlobAccessKey:     configViper.GetString("blob.access_key"),
		BlobSecretKey:     configViper.GetString("blob.secret_key"),
		BlobBucket:        configViper.GetString("blob.bucket"),
		BlobPublicBaseURL: configViper.GetString("blob.public_base_url"),
		BlobUseSSL:        configViper.GetBool("blob.use_ssl"),
		RedisAddr:         configViper.GetString("redis.addr"),
		RedisPassword:     configViper.GetString("redis.password"),
		NATSURL:           configViper.GetString("nats.url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if strings.TrimSpace(c.BlobEndpoint) != "" && strings.TrimSpace(c.BlobBucket) == "" {
		return fmt.Errorf("blob.bucket is required when blob.endpoint is set")
	}
	return nil
}
