package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"papertrade/internal/md"
	"papertrade/internal/strategy"
)

type Mode string

const (
	ModeTrading  Mode = "trading"
	ModeTraining Mode = "training"
)

type Config struct {
	RunMode        Mode
	Symbol         string
	AccountID      int64
	StartingCash   decimal.Decimal
	Feed           string
	Interval       string
	TickInterval   time.Duration
	Cooldown       time.Duration
	TradingShort   int
	TradingLong    int
	TrainingShort  int
	TrainingLong   int
	DeadZone       decimal.Decimal
	CandleLimit    int
	MinCandles     int
	TrainingLimit  int
	TrainingOffset int
	DecisionsPath  string
	CheckpointPath string
	LogLevel       string
	LogFormat      string
	TracingEnabled bool
	APIKey         string
	APISecret      string
	DataBaseURL    string
	ResetAccount   bool
}

func Default() Config {
	return Config{
		RunMode:        ModeTrading,
		Symbol:         "AAPL",
		AccountID:      1,
		StartingCash:   decimal.RequireFromString("10000.00000000"),
		Feed:           "test",
		Interval:       "1m",
		TickInterval:   10 * time.Second,
		Cooldown:       10 * time.Second,
		TradingShort:   3,
		TradingLong:    8,
		TrainingShort:  5,
		TrainingLong:   20,
		DeadZone:       decimal.RequireFromString("0.0002"),
		CandleLimit:    120,
		MinCandles:     30,
		TrainingLimit:  500,
		TrainingOffset: 0,
		DecisionsPath:  "decisions.ndjson",
		CheckpointPath: "checkpoint.json",
		LogLevel:       "INFO",
		LogFormat:      "text",
	}
}

// field binds one setting to its flag, environment variable and config file
// key. The file key is the flag name with dashes replaced by underscores.
type field struct {
	name  string
	env   string
	usage string
	get   func(*Config) string
	set   func(*Config, string) error
}

func (f field) fileKey() string {
	return strings.ReplaceAll(f.name, "-", "_")
}

var fields = []field{
	{"mode", "BOT_MODE", "run mode: trading or training",
		func(c *Config) string { return string(c.RunMode) },
		func(c *Config, v string) error { c.RunMode = Mode(strings.ToLower(v)); return nil }},
	{"symbol", "BOT_SYMBOL", "symbol to trade",
		func(c *Config) string { return c.Symbol },
		func(c *Config, v string) error { c.Symbol = v; return nil }},
	{"account-id", "BOT_ACCOUNT_ID", "paper account id",
		func(c *Config) string { return strconv.FormatInt(c.AccountID, 10) },
		func(c *Config, v string) (err error) { c.AccountID, err = strconv.ParseInt(v, 10, 64); return }},
	{"starting-cash", "BOT_STARTING_CASH", "cash a new or reset account starts with",
		func(c *Config) string { return c.StartingCash.String() },
		func(c *Config, v string) (err error) { c.StartingCash, err = decimal.NewFromString(v); return }},
	{"feed", "BOT_FEED", "market data feed: test, iex or sip",
		func(c *Config) string { return c.Feed },
		func(c *Config, v string) error { c.Feed = strings.ToLower(v); return nil }},
	{"interval", "BOT_INTERVAL", "bar interval, e.g. 1m, 5m, 1h",
		func(c *Config) string { return c.Interval },
		func(c *Config, v string) error { c.Interval = v; return nil }},
	{"tick-interval", "BOT_TICK_INTERVAL", "time between live trading steps",
		func(c *Config) string { return c.TickInterval.String() },
		func(c *Config, v string) (err error) { c.TickInterval, err = time.ParseDuration(v); return }},
	{"cooldown", "BOT_COOLDOWN", "minimum time between live trades",
		func(c *Config) string { return c.Cooldown.String() },
		func(c *Config, v string) (err error) { c.Cooldown, err = time.ParseDuration(v); return }},
	{"trading-short", "BOT_TRADING_SHORT", "live model short window",
		func(c *Config) string { return strconv.Itoa(c.TradingShort) },
		func(c *Config, v string) (err error) { c.TradingShort, err = strconv.Atoi(v); return }},
	{"trading-long", "BOT_TRADING_LONG", "live model long window",
		func(c *Config) string { return strconv.Itoa(c.TradingLong) },
		func(c *Config, v string) (err error) { c.TradingLong, err = strconv.Atoi(v); return }},
	{"training-short", "BOT_TRAINING_SHORT", "replay model short window",
		func(c *Config) string { return strconv.Itoa(c.TrainingShort) },
		func(c *Config, v string) (err error) { c.TrainingShort, err = strconv.Atoi(v); return }},
	{"training-long", "BOT_TRAINING_LONG", "replay model long window",
		func(c *Config) string { return strconv.Itoa(c.TrainingLong) },
		func(c *Config, v string) (err error) { c.TrainingLong, err = strconv.Atoi(v); return }},
	{"dead-zone", "BOT_DEAD_ZONE", "live model dead zone as a fraction of the long SMA",
		func(c *Config) string { return c.DeadZone.String() },
		func(c *Config, v string) (err error) { c.DeadZone, err = decimal.NewFromString(v); return }},
	{"candle-limit", "BOT_CANDLE_LIMIT", "candles fetched per live step",
		func(c *Config) string { return strconv.Itoa(c.CandleLimit) },
		func(c *Config, v string) (err error) { c.CandleLimit, err = strconv.Atoi(v); return }},
	{"min-candles", "BOT_MIN_CANDLES", "candles required before the live model trades",
		func(c *Config) string { return strconv.Itoa(c.MinCandles) },
		func(c *Config, v string) (err error) { c.MinCandles, err = strconv.Atoi(v); return }},
	{"training-limit", "BOT_TRAINING_LIMIT", "closes replayed in training mode",
		func(c *Config) string { return strconv.Itoa(c.TrainingLimit) },
		func(c *Config, v string) (err error) { c.TrainingLimit, err = strconv.Atoi(v); return }},
	{"training-offset", "BOT_TRAINING_OFFSET", "newest candles skipped in training mode",
		func(c *Config) string { return strconv.Itoa(c.TrainingOffset) },
		func(c *Config, v string) (err error) { c.TrainingOffset, err = strconv.Atoi(v); return }},
	{"decisions-path", "BOT_DECISIONS_PATH", "path to decisions log",
		func(c *Config) string { return c.DecisionsPath },
		func(c *Config, v string) error { c.DecisionsPath = v; return nil }},
	{"checkpoint-path", "BOT_CHECKPOINT_PATH", "path to ledger checkpoint file",
		func(c *Config) string { return c.CheckpointPath },
		func(c *Config, v string) error { c.CheckpointPath = v; return nil }},
	{"log-level", "LOG_LEVEL", "DEBUG, INFO, WARN or ERROR",
		func(c *Config) string { return c.LogLevel },
		func(c *Config, v string) error { c.LogLevel = strings.ToUpper(v); return nil }},
	{"log-format", "LOG_FORMAT", "text or json",
		func(c *Config) string { return c.LogFormat },
		func(c *Config, v string) error { c.LogFormat = strings.ToLower(v); return nil }},
	{"tracing", "LOG_TRACING_ENABLED", "export OpenTelemetry spans to stderr",
		func(c *Config) string { return strconv.FormatBool(c.TracingEnabled) },
		func(c *Config, v string) (err error) { c.TracingEnabled, err = strconv.ParseBool(v); return }},
	{"api-key", "APCA_API_KEY_ID", "alpaca API key id",
		func(c *Config) string { return c.APIKey },
		func(c *Config, v string) error { c.APIKey = v; return nil }},
	{"api-secret", "APCA_API_SECRET_KEY", "alpaca API secret key",
		func(c *Config) string { return c.APISecret },
		func(c *Config, v string) error { c.APISecret = v; return nil }},
	{"data-base-url", "APCA_API_DATA_URL", "alpaca market data base URL",
		func(c *Config) string { return c.DataBaseURL },
		func(c *Config, v string) error { c.DataBaseURL = v; return nil }},
	{"reset", "BOT_RESET", "clear the account's trades and positions before running",
		func(c *Config) string { return strconv.FormatBool(c.ResetAccount) },
		func(c *Config, v string) (err error) { c.ResetAccount, err = strconv.ParseBool(v); return }},
}

// Load resolves the configuration from args, the environment, an optional
// YAML file and the defaults, in that order of precedence. A .env file is
// loaded first without overriding variables that are already set.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("BOT_CONFIG"), "path to YAML config file")
	envFile := fs.String("env-file", ".env", "path to dotenv file")
	values := make(map[string]*string, len(fields))
	for _, f := range fields {
		values[f.name] = fs.String(f.name, f.get(&cfg), f.usage)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if err := loadDotEnv(*envFile); err != nil {
		return cfg, err
	}
	if *configPath != "" {
		if err := applyFile(&cfg, *configPath); err != nil {
			return cfg, err
		}
	}
	for _, f := range fields {
		if v, ok := os.LookupEnv(f.env); ok && v != "" {
			if err := f.set(&cfg, v); err != nil {
				return cfg, fmt.Errorf("env %s: %w", f.env, err)
			}
		}
	}

	setFlags := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { setFlags[fl.Name] = true })
	for _, f := range fields {
		if setFlags[f.name] {
			if err := f.set(&cfg, *values[f.name]); err != nil {
				return cfg, fmt.Errorf("flag --%s: %w", f.name, err)
			}
		}
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadDotEnv is a no-op when path does not exist.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	known := make(map[string]field, len(fields))
	for _, f := range fields {
		known[f.fileKey()] = f
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, ok := known[k]
		if !ok {
			return fmt.Errorf("config %s: unknown key %q", path, k)
		}
		if err := f.set(cfg, raw[k]); err != nil {
			return fmt.Errorf("config %s: %s: %w", path, k, err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.RunMode != ModeTrading && cfg.RunMode != ModeTraining {
		return fmt.Errorf("invalid mode: %s", cfg.RunMode)
	}
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if cfg.AccountID <= 0 {
		return errors.New("account-id must be > 0")
	}
	if !cfg.StartingCash.IsPositive() {
		return errors.New("starting-cash must be > 0")
	}
	switch cfg.Feed {
	case "test":
	case "iex", "sip":
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for the %s feed", cfg.Feed)
		}
	default:
		return fmt.Errorf("invalid feed: %s", cfg.Feed)
	}
	if _, _, err := md.ParseInterval(cfg.Interval); err != nil {
		return err
	}
	if cfg.TickInterval <= 0 {
		return errors.New("tick-interval must be > 0")
	}
	if cfg.Cooldown < 0 {
		return errors.New("cooldown must be >= 0")
	}
	if _, err := strategy.New(cfg.TradingShort, cfg.TradingLong); err != nil {
		return fmt.Errorf("trading windows: %w", err)
	}
	if _, err := strategy.New(cfg.TrainingShort, cfg.TrainingLong); err != nil {
		return fmt.Errorf("training windows: %w", err)
	}
	if cfg.DeadZone.IsNegative() {
		return errors.New("dead-zone must be >= 0")
	}
	if cfg.MinCandles <= 0 {
		return errors.New("min-candles must be > 0")
	}
	if cfg.CandleLimit < cfg.MinCandles {
		return errors.New("candle-limit must be >= min-candles")
	}
	if cfg.TrainingLimit <= 0 {
		return errors.New("training-limit must be > 0")
	}
	if cfg.TrainingOffset < 0 {
		return errors.New("training-offset must be >= 0")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}
