package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Business BusinessConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins []string
}

// StorageConfig locates the flat-file Record Store and the managed image directory.
type StorageConfig struct {
	DataDir      string
	UsersFile    string
	ProductsFile string
	HistoryFile  string
	ImagesDir    string
}

type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	MinPasswordLength int
	BcryptCost        int
	AdminUsers        []string
}

// DatabaseConfig is optional; an empty URL disables the sales archive.
type DatabaseConfig struct {
	URL string
}

// RedisConfig is optional; an empty Addr disables the stock mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig is optional; no brokers disables event publishing and the archive worker.
type KafkaConfig struct {
	Brokers       []string
	TopicEvents   string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint   string
	TraceSampleRatio float64
}

type BusinessConfig struct {
	TopProductsLimit  int
	StockSyncInterval time.Duration
	DailyReportAt     string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, _ := strconv.Atoi(getEnv("AUTH_TOKEN_TTL_MINUTES", "720"))
	minPassword, _ := strconv.Atoi(getEnv("AUTH_MIN_PASSWORD_LENGTH", "6"))
	bcryptCost, _ := strconv.Atoi(getEnv("AUTH_BCRYPT_COST", "10"))
	topN, _ := strconv.Atoi(getEnv("REPORT_TOP_PRODUCTS", "5"))
	syncSeconds, _ := strconv.Atoi(getEnv("STOCK_SYNC_INTERVAL_SECONDS", "300"))
	sampleRatio, _ := strconv.ParseFloat(getEnv("TRACE_SAMPLE_RATIO", "1"), 64)

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Env:         getEnv("ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", ""),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			UsersFile:    getEnv("USERS_FILE", filepath.Join(dataDir, "data.json")),
			ProductsFile: getEnv("PRODUCTS_FILE", filepath.Join(dataDir, "productos.json")),
			HistoryFile:  getEnv("HISTORY_FILE", filepath.Join(dataDir, "historial_compras.json")),
			ImagesDir:    getEnv("IMAGES_DIR", filepath.Join(dataDir, "imagenes_productos")),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
			TokenTTL:          time.Duration(tokenTTL) * time.Minute,
			MinPasswordLength: minPassword,
			BcryptCost:        bcryptCost,
			AdminUsers:        splitList(getEnv("ADMIN_USERS", "")),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			TopicEvents:   getEnv("KAFKA_TOPIC_STORE_EVENTS", "store-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-archive"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint:   getEnv("JAEGER_ENDPOINT", ""),
			TraceSampleRatio: sampleRatio,
		},
		Business: BusinessConfig{
			TopProductsLimit:  topN,
			StockSyncInterval: time.Duration(syncSeconds) * time.Second,
			DailyReportAt:     getEnv("DAILY_REPORT_AT", "23:55"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, data=%s", cfg.Server.Env, cfg.Server.Port, cfg.Storage.DataDir)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// splitList turns a comma separated value into a trimmed list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
