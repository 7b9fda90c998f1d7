package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Category   CategoryConfig
	RateLimit  RateLimitConfig
	Cloudinary CloudinaryConfig
}

type ServerConfig struct {
	AppEnv         string
	Port           string
	GinMode        string
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

// CategoryConfig tunes the taxonomy guard and the commit loop.
type CategoryConfig struct {
	DeletePolicy  string
	MaxDepth      int
	MaxHops       int
	CommitRetries int
}

type RateLimitConfig struct {
	PerSecond int
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "dev" || c.Server.AppEnv == "development"
}

// LoadEnv reads .env when present and then the process environment.
func LoadEnv() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			AppEnv:         getEnv("APP_ENV", "dev"),
			Port:           getEnv("PORT", "8080"),
			GinMode:        getEnv("GIN_MODE", "debug"),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", ""),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Mongo: MongoConfig{
			URI:      getEnv("DATABASE_URL", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database: getEnv("DB_NAME", "khoomi"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		JWT: JWTConfig{
			Secret: getEnv("SECRET", ""),
		},
		Category: CategoryConfig{
			DeletePolicy:  getEnv("CATEGORY_DELETE_POLICY", "reject"),
			MaxDepth:      getEnvInt("CATEGORY_MAX_DEPTH", 0),
			MaxHops:       getEnvInt("CATEGORY_MAX_HOPS", 32),
			CommitRetries: getEnvInt("CATEGORY_COMMIT_RETRIES", 3),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 5),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "categories"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return fallback
}
