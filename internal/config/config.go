// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	Backend                 `yaml:"backend"`
	Tenant                  `yaml:"tenant"`
	Telegram                `yaml:"telegram"`
	DailyCache              `yaml:"daily_cache"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	Flow                    `yaml:"flow"`
}

// Backend настройки подключения к REST API бэкенда
type Backend struct {
	BaseURL         string        `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:8000/api"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
	ServiceSecret   string        `yaml:"service_secret" env:"BACKEND_SERVICE_SECRET"`
	ServiceTokenTTL time.Duration `yaml:"service_token_ttl" env-default:"5m"`
	RateLimit       float64       `yaml:"rate_limit" env-default:"20"`
	Burst           int           `yaml:"burst" env-default:"10"`
}

// Tenant явный контекст выбора проекта
type Tenant struct {
	ProjectID   int    `yaml:"project_id" env:"PROJECT_ID"`
	ProjectName string `yaml:"project_name" env:"PROJECT_NAME"`
	DefaultName string `yaml:"default_name" env-default:"Mystic Tarot Bot"`
}

// Telegram настройки бота
type Telegram struct {
	BotToken      string        `yaml:"bot_token" env:"BOT_TOKEN"`
	Mode          string        `yaml:"mode" env:"TELEGRAM_MODE" env-default:"polling"`
	WebhookURL    string        `yaml:"webhook_url" env:"TELEGRAM_WEBHOOK_URL"`
	WebhookSecret string        `yaml:"webhook_secret" env:"TELEGRAM_WEBHOOK_SECRET"`
	PollTimeout   time.Duration `yaml:"poll_timeout" env-default:"60s"`
}

// DailyCache настройки хранилища карты дня
type DailyCache struct {
	Driver   string `yaml:"driver" env:"DAILY_CACHE_DRIVER" env-default:"redis"`
	Location string `yaml:"location" env-default:"Local"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ настройки публикации доменных событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"tarot.events"`
	MaxRetries int           `yaml:"max_retries" env-default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Flow параметры пользовательского сценария
type Flow struct {
	PaymentSuccessDelay time.Duration `yaml:"payment_success_delay" env-default:"2s"`
	CardOfDayName       string        `yaml:"card_of_day_name" env-default:"Карта дня"`
}

// MustLoad функция для загрузки конфига, путь к файлу берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// LoadLocation возвращает часовой пояс, по которому считается календарный день пользователя.
func (d DailyCache) LoadLocation() (*time.Location, error) {
	if d.Location == "" || d.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(d.Location)
	if err != nil {
		return nil, fmt.Errorf("config.LoadLocation: %w", err)
	}
	return loc, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Backend:\n"+
			"  BaseURL: %s\n"+
			"  Timeout: %s\n"+
			"Tenant:\n"+
			"  ProjectID: %d\n"+
			"  ProjectName: %s\n"+
			"  DefaultName: %s\n"+
			"Telegram:\n"+
			"  Mode: %s\n"+
			"DailyCache:\n"+
			"  Driver: %s\n"+
			"  Location: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n",
		c.Env,
		c.BaseURL,
		c.Backend.Timeout,
		c.ProjectID,
		c.ProjectName,
		c.DefaultName,
		c.Mode,
		c.Driver,
		c.Location,
		c.AddressRedis,
		c.DB,
		c.Exchange,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
	)
}
