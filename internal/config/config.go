package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB      DBConfig
	Storage StorageConfig
	Session SessionConfig
	Google  GoogleConfig
	Server  ServerConfig
	Library LibraryConfig
	Signup  SignupConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

// TagPolicy controls what happens when an upload carries a tag that is not
// in the configured catalog.
type TagPolicy string

const (
	TagPolicyReject TagPolicy = "reject"
	TagPolicyDrop   TagPolicy = "drop"
)

type LibraryConfig struct {
	TagCatalog          []string
	TagPolicy           TagPolicy
	PlaylistNameCatalog []string
}

type SignupConfig struct {
	InitialAdminEmails []string
	AllowAutoSignup    bool
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "cottageplayer"),
			Password: getEnv("DB_PASSWORD", "cottageplayer_secret"),
			Name:     getEnv("DB_NAME", "cottageplayer"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "cottageplayer"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "cottageplayer_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "media"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "change-me-in-production"),
			TTL:    time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 168)) * time.Hour,
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3001"),
		},
		Library: LibraryConfig{
			TagCatalog:          getEnvAsSlice("TAG_CATALOG", []string{"Music", "Movie", "Family", "Holiday"}),
			TagPolicy:           TagPolicy(getEnv("TAG_POLICY", string(TagPolicyReject))),
			PlaylistNameCatalog: getEnvAsSlice("PLAYLIST_NAME_CATALOG", nil),
		},
		Signup: SignupConfig{
			InitialAdminEmails: getEnvAsSlice("INITIAL_ADMIN_EMAILS", nil),
			AllowAutoSignup:    getEnvAsBool("ALLOW_AUTO_SIGNUP", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
