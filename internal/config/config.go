package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported document store drivers.
const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

// Supported identity providers.
const (
	AuthProviderFirebase = "firebase"
	AuthProviderJWT      = "jwt"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	CORSAllowOrigins string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	RealtimeBase   string

	AuthProvider            string
	JWTSecret               string
	JWTTTL                  time.Duration
	FirebaseProjectID       string
	FirebaseCredentialsPath string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AvatarMaxSizeMB        int

	OpenAIAPIKey string
	OpenAIModel  string

	PresenceSessionTTL time.Duration
	PresenceSweepSpec  string
	MessagePageSize    int
	SessionEventRate   float64
	SessionEventBurst  int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AIEnabled reports whether an AI assistant can be constructed.
func (c Config) AIEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VIBELY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Vibely API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("realtime.channel", "vibely")
	v.SetDefault("auth.provider", AuthProviderJWT)
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("cloudinary.folder", "vibely/avatars")
	v.SetDefault("avatar.max_size_mb", 5)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("presence.session_ttl", "90s")
	v.SetDefault("presence.sweep", "@every 30s")
	v.SetDefault("messages.page_size", 50)
	v.SetDefault("session.event_rate", 20)
	v.SetDefault("session.event_burst", 40)

	jwtTTL, err := parseDuration(v, "jwt.ttl", "24h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	sessionTTL, err := parseDuration(v, "presence.session_ttl", "90s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid presence session ttl: %w", err)
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		CORSAllowOrigins:        v.GetString("cors.origins"),
		DatabaseDriver:          strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:             v.GetString("database.url"),
		RedisURL:                v.GetString("redis.url"),
		NATSURL:                 v.GetString("nats.url"),
		RealtimeBase:            v.GetString("realtime.channel"),
		AuthProvider:            strings.ToLower(v.GetString("auth.provider")),
		JWTSecret:               v.GetString("jwt.secret"),
		JWTTTL:                  jwtTTL,
		FirebaseProjectID:       v.GetString("firebase.project_id"),
		FirebaseCredentialsPath: v.GetString("firebase.credentials_path"),
		CloudinaryCloudName:     v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:        v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:     v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:  v.GetString("cloudinary.folder"),
		AvatarMaxSizeMB:         v.GetInt("avatar.max_size_mb"),
		OpenAIAPIKey:            v.GetString("openai_api_key"),
		OpenAIModel:             v.GetString("openai.model"),
		PresenceSessionTTL:      sessionTTL,
		PresenceSweepSpec:       v.GetString("presence.sweep"),
		MessagePageSize:         v.GetInt("messages.page_size"),
		SessionEventRate:        v.GetFloat64("session.event_rate"),
		SessionEventBurst:       v.GetInt("session.event_burst"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database url must be provided for driver %s", c.DatabaseDriver)
		}
	case DriverFirestore:
		if c.FirebaseProjectID == "" && c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("firestore driver requires firebase project id or credentials")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}

	switch c.AuthProvider {
	case AuthProviderJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("jwt secret must be provided")
		}
	case AuthProviderFirebase:
	default:
		return fmt.Errorf("unsupported auth provider %q", c.AuthProvider)
	}

	if c.RedisURL == "" {
		return fmt.Errorf("redis url must be provided")
	}

	if c.MessagePageSize <= 0 || c.MessagePageSize > 100 {
		c.MessagePageSize = 50
	}
	if c.AvatarMaxSizeMB <= 0 {
		c.AvatarMaxSizeMB = 5
	}
	if c.SessionEventRate <= 0 {
		c.SessionEventRate = 20
	}
	if c.SessionEventBurst <= 0 {
		c.SessionEventBurst = 40
	}

	return nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
