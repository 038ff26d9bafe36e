package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"magic_bot/pkg/logger"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	alpacaKeyENV      = "ALPACA_KEY_ID"
	alpacaSecretENV   = "ALPACA_SECRET_KEY"
)

// Config — единственный иммутабельный конфиг процесса. Читается один раз на
// старте: yaml-файл + env-оверрайды; внутри горячих путей env не трогаем.
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	Alpaca struct {
		KeyID      string `yaml:"key_id"`
		SecretKey  string `yaml:"secret_key"`
		TradingURL string `yaml:"trading_url"`
		DataURL    string `yaml:"data_url"`
	} `yaml:"alpaca"`

	// Символы, которые сканирует entry-цикл.
	Watchlist []string `yaml:"watchlist"`

	// HTTP / лимитер
	HTTPTimeout        time.Duration
	AlpacaMaxConc      int
	AlpacaMinSpacing   time.Duration
	QuoteMaxConc       int
	QuoteMinSpacing    time.Duration
	BarsMaxConc        int
	BarsMinSpacing     time.Duration

	// Циклы
	TradingEnabled   bool
	EntryScanEvery   time.Duration
	ExitScanEvery    time.Duration
	DustScanEvery    time.Duration
	EquitySnapEvery  time.Duration

	// Вход
	MinProbToEnter float64
	EntryNotional  float64
	TickSize       float64

	// Политика выхода
	SellRepriceEnabled   bool
	ExitCancelsEnabled   bool
	ExitMarketExits      bool
	EnforceEntryFloor    bool
	RepriceAwayBps       float64
	DesiredNetExitBps    float64
	MinNetProfitBps      float64
	FeeBpsRoundTrip      float64
	DustMinNotional      float64

	// TWAP
	TwapSlices      int
	TwapMaxChaseBps float64

	// Admission guard
	CapEnabled bool
	CapMaxEnv  string // сырое значение из env, для диагностики
	CapMax     int    // эффективный потолок, >= 0

	// Предиктор
	MRZScoreThreshold   float64
	ConfirmTFsRequired  int
	BookBandPct         float64
	ReferenceNotional   float64
	TargetMoveBps       float64
	CalibrationFile     string
	CalibrationReload   time.Duration

	// Прогрев предиктора
	WarmupEnabled     bool
	WarmupBlockTrades bool
	WarmupMin1m       int
	WarmupMin5m       int
	WarmupMin15m      int

	// Стрим котировок
	StreamEnabled  bool
	QuoteMaxAge    time.Duration
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		logger.Fatal("failed to open config file: %v", err)
	}
	defer func() {
		_ = file.Close()
	}()

	capEnv := os.Getenv("CONCURRENCY_CAP_MAX")
	capMax, capOK := resolveCapMax(capEnv, 5)
	config := Config{
		HTTPTimeout:      msFromEnv("HTTP_TIMEOUT_MS", 10000),
		AlpacaMaxConc:    intFromEnv("ALPACA_MAX_CONCURRENT", 3),
		AlpacaMinSpacing: msFromEnv("ALPACA_MIN_TIME_MS", 250),
		QuoteMaxConc:     intFromEnv("QUOTE_MAX_CONCURRENT", 4),
		QuoteMinSpacing:  msFromEnv("QUOTE_MIN_TIME_MS", 150),
		BarsMaxConc:      intFromEnv("BARS_MAX_CONCURRENT", 2),
		BarsMinSpacing:   msFromEnv("BARS_MIN_TIME_MS", 350),

		TradingEnabled:  boolFromEnv("TRADING_ENABLED", false),
		EntryScanEvery:  msFromEnv("ENTRY_SCAN_MS", 15000),
		ExitScanEvery:   msFromEnv("EXIT_SCAN_MS", 7000),
		DustScanEvery:   msFromEnv("DUST_SCAN_MS", 120000),
		EquitySnapEvery: msFromEnv("EQUITY_SNAPSHOT_MS", 300000),

		MinProbToEnter: floatFromEnv("MIN_PROB_TO_ENTER", 0.62),
		EntryNotional:  floatFromEnv("ENTRY_NOTIONAL", 200),
		TickSize:       floatFromEnv("TICK_SIZE", 0.01),

		SellRepriceEnabled: boolFromEnv("SELL_REPRICE_ENABLED", true),
		ExitCancelsEnabled: boolFromEnv("EXIT_CANCELS_ENABLED", false),
		ExitMarketExits:    boolFromEnv("EXIT_MARKET_EXITS_ENABLED", false),
		EnforceEntryFloor:  boolFromEnv("EXIT_ENFORCE_ENTRY_FLOOR", true),
		RepriceAwayBps:     floatFromEnv("REPRICE_AWAY_BPS", 15),
		DesiredNetExitBps:  floatFromEnv("DESIRED_NET_EXIT_BPS", 45),
		MinNetProfitBps:    floatFromEnv("MIN_NET_PROFIT_BPS", 20),
		FeeBpsRoundTrip:    floatFromEnv("FEE_BPS_ROUND_TRIP", 50),
		DustMinNotional:    floatFromEnv("DUST_MIN_NOTIONAL", 1.0),

		TwapSlices:      intFromEnv("TWAP_SLICES", 1),
		TwapMaxChaseBps: floatFromEnv("TWAP_MAX_CHASE_BPS", 30),

		CapEnabled: capOK && boolFromEnv("CONCURRENCY_CAP_ENABLED", true),
		CapMaxEnv:  capEnv,
		CapMax:     capMax,

		MRZScoreThreshold:  floatFromEnv("MR_ZSCORE_THRESHOLD", 1.25),
		ConfirmTFsRequired: intFromEnv("CONFIRM_TFS_REQUIRED", 2),
		BookBandPct:        floatFromEnv("BOOK_BAND_PCT", 0.2),
		ReferenceNotional:  floatFromEnv("REFERENCE_NOTIONAL", 500),
		TargetMoveBps:      floatFromEnv("TARGET_MOVE_BPS", 45),
		CalibrationFile:    getenvDefault("CALIBRATION_FILE", "data/calibration.json"),
		CalibrationReload:  msFromEnv("CALIBRATION_RELOAD_MS", 60000),

		WarmupEnabled:     boolFromEnv("PREDICTOR_WARMUP_ENABLED", true),
		WarmupBlockTrades: boolFromEnv("PREDICTOR_WARMUP_BLOCK_TRADES", true),
		WarmupMin1m:       intFromEnv("PREDICTOR_WARMUP_MIN_1M", 200),
		WarmupMin5m:       intFromEnv("PREDICTOR_WARMUP_MIN_5M", 200),
		WarmupMin15m:      intFromEnv("PREDICTOR_WARMUP_MIN_15M", 100),

		StreamEnabled: boolFromEnv("STREAM_ENABLED", true),
		QuoteMaxAge:   msFromEnv("QUOTE_MAX_AGE_MS", 5000),
	}

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		logger.Fatal("failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if k := os.Getenv(alpacaKeyENV); k != "" {
		config.Alpaca.KeyID = k
	}
	if s := os.Getenv(alpacaSecretENV); s != "" {
		config.Alpaca.SecretKey = s
	}
	if config.Alpaca.TradingURL == "" {
		config.Alpaca.TradingURL = "https://paper-api.alpaca.markets"
	}
	if config.Alpaca.DataURL == "" {
		config.Alpaca.DataURL = "https://data.alpaca.markets"
	}

	return &config, nil
}

// resolveCapMax — сырое env-значение в эффективный потолок: floor и не
// меньше нуля. Нечитаемое значение — ok=false, и кэппинг выключается:
// молчаливый дефолт скрывал бы ошибку конфигурации.
func resolveCapMax(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	n := int(f)
	if n < 0 {
		return 0, true
	}
	return n, true
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

func msFromEnv(key string, defMs int) time.Duration {
	return time.Duration(intFromEnv(key, defMs)) * time.Millisecond
}
