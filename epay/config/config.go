package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogDir   string `yaml:"log_dir"`

	DBDriver   string `yaml:"db_driver"` // "postgres" or "sqlite"
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBPath     string `yaml:"db_path"`

	JWTSecret string `yaml:"jwt_secret"`

	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`
	// MinIOPublicURL is the base used to build public object URLs.
	// Defaults to the endpoint when empty.
	MinIOPublicURL string `yaml:"minio_public_url"`

	BusDriver     string `yaml:"bus_driver"` // "memory" or "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	Chat ChatConfig `yaml:"chat"`
}

type ChatConfig struct {
	RosterWindow          int           `yaml:"roster_window"`
	OpTimeout             time.Duration `yaml:"op_timeout"`
	RestoreDraftOnFailure bool          `yaml:"restore_draft_on_failure"`
	ImagePlaceholder      string        `yaml:"image_placeholder"`
	ImageFolder           string        `yaml:"image_folder"`
	MaxImageBytes         int64         `yaml:"max_image_bytes"`
	BusBuffer             int           `yaml:"bus_buffer"`
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8000",
		LogDir:      "./logs",
		DBDriver:    "postgres",
		DBHost:      "localhost",
		DBPort:      "5432",
		DBPath:      "epay.db",
		MinIOBucket: "images",
		BusDriver:   "memory",
		RedisAddr:   "localhost:6379",
		Chat: ChatConfig{
			RosterWindow:     100,
			OpTimeout:        10 * time.Second,
			ImagePlaceholder: "Sent an image",
			ImageFolder:      "chat",
			MaxImageBytes:    10 << 20,
			BusBuffer:        64,
		},
	}
}

// LoadConfig reads .env (if present), then the YAML file named by
// CONFIG_FILE (if set), then environment variables, in that order of
// increasing precedence.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, "config file ignored:", err)
		}
	}
	applyEnv(&cfg)
	return cfg
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)

	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)

	cfg.MinIOEndpoint = getEnv("MINIO_ENDPOINT", cfg.MinIOEndpoint)
	cfg.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIOAccessKey)
	cfg.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIOSecretKey)
	cfg.MinIOBucket = getEnv("MINIO_BUCKET", cfg.MinIOBucket)
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", cfg.MinIOUseSSL)
	cfg.MinIOPublicURL = getEnv("MINIO_PUBLIC_URL", cfg.MinIOPublicURL)

	cfg.BusDriver = getEnv("BUS_DRIVER", cfg.BusDriver)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)

	cfg.Chat.RosterWindow = getEnvInt("CHAT_ROSTER_WINDOW", cfg.Chat.RosterWindow)
	cfg.Chat.OpTimeout = getEnvDuration("CHAT_OP_TIMEOUT", cfg.Chat.OpTimeout)
	cfg.Chat.RestoreDraftOnFailure = getEnvBool("CHAT_RESTORE_DRAFT_ON_FAILURE", cfg.Chat.RestoreDraftOnFailure)
	cfg.Chat.ImagePlaceholder = getEnv("CHAT_IMAGE_PLACEHOLDER", cfg.Chat.ImagePlaceholder)
	cfg.Chat.ImageFolder = getEnv("CHAT_IMAGE_FOLDER", cfg.Chat.ImageFolder)
	cfg.Chat.MaxImageBytes = int64(getEnvInt("CHAT_MAX_IMAGE_BYTES", int(cfg.Chat.MaxImageBytes)))
	cfg.Chat.BusBuffer = getEnvInt("CHAT_BUS_BUFFER", cfg.Chat.BusBuffer)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}
