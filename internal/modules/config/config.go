package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"signal_agent/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	feedTokenENV      = "FEED_TOKEN"
	brokerKeyENV      = "BROKER_API_KEY"
	brokerSecretENV   = "BROKER_API_SECRET"
	brokerPassphENV   = "BROKER_PASSPHRASE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	journalDSNENV     = "JOURNAL_DSN"
)

// Config ...
type Config struct {
	Feed struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		ClientID string `yaml:"client_id"`
	} `yaml:"feed"`

	Broker struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		APISecret  string `yaml:"api_secret"`
		Passphrase string `yaml:"passphrase"`
		Simulated  bool   `yaml:"simulated"`
	} `yaml:"broker"`

	Trading struct {
		TradeAmountUsdt float64 `yaml:"trade_amount_usdt"`
		MaxLeverage     int     `yaml:"max_leverage"`
		MinOrderValue   float64 `yaml:"min_order_value"`
		// указатель, чтобы отличить явное false от незаполненного поля
		AutoExecute *bool `yaml:"auto_execute"`
	} `yaml:"trading"`

	Risk struct {
		MaxDailyTrades   int     `yaml:"max_daily_trades"`
		MaxOpenPositions int     `yaml:"max_open_positions"`
		StopOnDailyLoss  float64 `yaml:"stop_on_daily_loss"`
		MinBalance       float64 `yaml:"min_balance"`
	} `yaml:"risk"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Console    *bool  `yaml:"console"`
	} `yaml:"logging"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Journal struct {
		DSN string `yaml:"dsn"`
	} `yaml:"journal"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	// Тайминги соединения и исполнения — только из env, в yaml их не тащим
	PingInterval  time.Duration
	StaleAfter    time.Duration
	AuthTimeout   time.Duration
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
	BrokerTimeout time.Duration
	ShutdownGrace time.Duration
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		PingInterval:  durationFromEnv("PING_INTERVAL", "30s"),
		StaleAfter:    durationFromEnv("STALE_AFTER", "90s"),
		AuthTimeout:   durationFromEnv("AUTH_TIMEOUT", "10s"),
		ReconnectMin:  durationFromEnv("RECONNECT_MIN", "5s"),
		ReconnectMax:  durationFromEnv("RECONNECT_MAX", "300s"),
		BrokerTimeout: durationFromEnv("BROKER_TIMEOUT", "15s"),
		ShutdownGrace: durationFromEnv("SHUTDOWN_GRACE", "30s"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	// секреты из env перекрывают файл
	if v := os.Getenv(feedTokenENV); v != "" {
		config.Feed.Token = v
	}
	if v := os.Getenv(brokerKeyENV); v != "" {
		config.Broker.APIKey = v
	}
	if v := os.Getenv(brokerSecretENV); v != "" {
		config.Broker.APISecret = v
	}
	if v := os.Getenv(brokerPassphENV); v != "" {
		config.Broker.Passphrase = v
	}
	if v := os.Getenv(tokenTelegramENV); v != "" {
		config.Telegram.Token = v
	}
	if v := os.Getenv(journalDSNENV); v != "" {
		config.Journal.DSN = v
	}

	// торговые настройки тоже можно задать через env, без правки yaml
	config.Broker.Simulated = boolFromEnv("BROKER_SIMULATED", config.Broker.Simulated)
	config.Trading.TradeAmountUsdt = floatFromEnv("TRADE_AMOUNT_USDT", config.Trading.TradeAmountUsdt)
	config.Trading.MaxLeverage = intFromEnv("MAX_LEVERAGE", config.Trading.MaxLeverage)

	config.applyDefaults()

	if config.Feed.URL == "" {
		return nil, fmt.Errorf("config: feed.url is required")
	}

	return &config, nil
}

// applyDefaults — дефолты, с которыми агент запускается «из коробки».
func (c *Config) applyDefaults() {
	if c.Trading.TradeAmountUsdt <= 0 {
		c.Trading.TradeAmountUsdt = 5.0
	}
	if c.Trading.MaxLeverage <= 0 {
		c.Trading.MaxLeverage = 25
	}
	if c.Trading.MinOrderValue <= 0 {
		c.Trading.MinOrderValue = 5.0
	}
	// лимиты по умолчанию фактически выключены
	if c.Risk.MaxDailyTrades <= 0 {
		c.Risk.MaxDailyTrades = 999999
	}
	if c.Risk.MaxOpenPositions <= 0 {
		c.Risk.MaxOpenPositions = 999999
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://www.okx.com"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.File != "" && c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Health.Addr == "" {
		c.Health.Addr = ":8080"
	}
	if c.Feed.ClientID == "" {
		c.Feed.ClientID = "sdk-" + uuid.NewString()[:8]
	}
}

// AutoExecute — true, если в конфиге явно не выключили.
func (c *Config) AutoExecute() bool {
	if c.Trading.AutoExecute == nil {
		return true
	}
	return *c.Trading.AutoExecute
}

// ConsoleLog — консольный вывод логов, по умолчанию включён.
func (c *Config) ConsoleLog() bool {
	if c.Logging.Console == nil {
		return true
	}
	return *c.Logging.Console
}

// TradingParameters — иммутабельный снимок для риск-гейта.
func (c *Config) TradingParameters() models.TradingParameters {
	return models.TradingParameters{
		TradeAmountUsdt:  c.Trading.TradeAmountUsdt,
		MaxLeverage:      c.Trading.MaxLeverage,
		MinOrderValue:    c.Trading.MinOrderValue,
		AutoExecute:      c.AutoExecute(),
		MaxDailyTrades:   c.Risk.MaxDailyTrades,
		MaxOpenPositions: c.Risk.MaxOpenPositions,
		StopOnDailyLoss:  c.Risk.StopOnDailyLoss,
		MinBalance:       c.Risk.MinBalance,
	}
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
