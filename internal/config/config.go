package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Драйверы хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config структура конфигурации
type Config struct {
	Port             string
	WSPort           string
	AppEnv           string
	TelegramBotToken string
	JWTSecret        string
	StorageDriver    string
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	LogLevel         string
	LogFormat        string
	RateLimit        RateLimitConfig
	Exchange         ExchangeConfig
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RateLimitConfig - ограничение частоты создания запросов на обмен
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// ExchangeConfig - экономика баллов
type ExchangeConfig struct {
	StartingPoints      int
	PointsForGivingItem int
}

// IsDevelopment - режим разработки: токен бота можно не задавать, тогда
// подпись initData не проверяется
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// LoadConfig загружает переменные из .env и завершает процесс, если конфигурация неполная
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("⚠️ .env файл не найден, используем переменные окружения")
	}

	cfg, err := Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ Ошибка конфигурации")
	}
	return cfg
}

// Load читает конфигурацию из переменных окружения
func Load() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "rewear_user"),
		Password: getEnv("PGPASSWORD", "rewear_pass"),
		Name:     getEnv("PGDATABASE", "rewear"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
	}

	// Формируем строку подключения к базе данных
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	dbConfig.MaxConns = int32(intEnv("DB_MAX_CONNS", 10))
	dbConfig.MinConns = int32(intEnv("DB_MIN_CONNS", 2))

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %w", err))
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		WSPort:           getEnv("WS_PORT", "8081"),
		AppEnv:           getEnv("APP_ENV", "production"), // По умолчанию production
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		StorageDriver:    getEnv("STORAGE_DRIVER", StoragePostgres),
		DatabaseURL:      dbURL,
		DatabaseConfig:   dbConfig,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: intEnv("RATE_LIMIT_BURST", 10),
		},
		Exchange: ExchangeConfig{
			StartingPoints:      intEnv("STARTING_POINTS", 50),
			PointsForGivingItem: intEnv("POINTS_FOR_GIVING_ITEM", 10),
		},
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("не задан JWT_SECRET"))
	}
	if cfg.TelegramBotToken == "" && !cfg.IsDevelopment() {
		errs = append(errs, errors.New("не задан TELEGRAM_BOT_TOKEN"))
	}
	switch cfg.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("неизвестный STORAGE_DRIVER %q", cfg.StorageDriver))
	}
	if cfg.Exchange.StartingPoints < 0 {
		errs = append(errs, errors.New("STARTING_POINTS не может быть отрицательным"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
