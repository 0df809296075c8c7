// Package config loads the screener configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/indicators"
)

// App holds process-wide settings.
type App struct {
	Name         string        `yaml:"name"`
	Env          string        `yaml:"env" validate:"oneof=dev prod"`
	Addr         string        `yaml:"addr" validate:"required"`
	LogLevel     string        `yaml:"log_level"`
	PushInterval time.Duration `yaml:"push_interval" validate:"gte=0"`
}

// Broker selects and configures the candle source. Secrets only come from the environment.
type Broker struct {
	Provider        string        `yaml:"provider" validate:"oneof=oanda twelvedata polygon"`
	Environment     string        `yaml:"environment" validate:"oneof=practice live"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	AccessToken     string        `yaml:"-" validate:"required_if=Provider oanda"`
	TwelveDataKey   string        `yaml:"-" validate:"required_if=Provider twelvedata"`
	PolygonKey      string        `yaml:"-" validate:"required_if=Provider polygon"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gte=0"`
	RequestsPerSec  int           `yaml:"requests_per_sec" validate:"gte=1,lte=100"`
	MaxRetryTimeout time.Duration `yaml:"max_retry_timeout" validate:"gte=0"`
}

// Screener drives the scan loop.
type Screener struct {
	Instruments     []string      `yaml:"instruments" validate:"required,min=1,dive,required"`
	Timeframes      []string      `yaml:"timeframes" validate:"required,min=1"`
	CandleCount     int           `yaml:"candle_count" validate:"gte=30,lte=5000"`
	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`
	Timezone        string        `yaml:"timezone" validate:"required"`
	CompleteOnly    bool          `yaml:"complete_only"`
}

// Notify configures push alerts through Firebase Cloud Messaging.
type Notify struct {
	Enabled         bool          `yaml:"enabled"`
	CredentialsPath string        `yaml:"-"`
	CredentialsJSON string        `yaml:"-"`
	Cooldown        time.Duration `yaml:"cooldown" validate:"gte=0"`
}

// Config collects every configuration leaf.
type Config struct {
	App        App               `yaml:"app"`
	Broker     Broker            `yaml:"broker"`
	Screener   Screener          `yaml:"screener"`
	Indicators indicators.Params `yaml:"indicators"`
	Thresholds domain.Thresholds `yaml:"thresholds"`
	Notify     Notify            `yaml:"notify"`
}

// DefaultInstruments is the watch list used when none is configured.
var DefaultInstruments = []string{
	"EUR_USD", "GBP_USD", "USD_JPY", "USD_CHF", "AUD_USD", "USD_CAD", "NZD_USD",
	"EUR_GBP", "EUR_JPY", "GBP_JPY", "AUD_JPY", "EUR_CHF", "EUR_AUD", "GBP_CHF", "CAD_JPY",
	"XAU_USD", "XAG_USD", "US30_USD", "NAS100_USD", "SPX500_USD", "DE30_EUR",
}

func Default() *Config {
	return &Config{
		App: App{
			Name:         "fx-screener",
			Env:          "prod",
			Addr:         ":8080",
			LogLevel:     "info",
			PushInterval: 5 * time.Second,
		},
		Broker: Broker{
			Provider:        "oanda",
			Environment:     "practice",
			RequestTimeout:  30 * time.Second,
			RequestsPerSec:  5,
			MaxRetryTimeout: 30 * time.Second,
		},
		Screener: Screener{
			Instruments:     append([]string(nil), DefaultInstruments...),
			Timeframes:      []string{"D", "H4", "H1"},
			CandleCount:     150,
			CacheTTL:        10 * time.Second,
			RefreshInterval: time.Minute,
			Timezone:        "Europe/Paris",
		},
		Indicators: indicators.DefaultParams(),
		Thresholds: domain.DefaultThresholds(),
		Notify: Notify{
			Cooldown: 30 * time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (if path is
// not empty), then .env and environment overrides, then the overrides
// (command line flags). The result is validated.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.App.Addr = getEnvWithDefault("HTTP_ADDR", c.App.Addr)
	c.App.Env = getEnvWithDefault("APP_ENV", c.App.Env)
	c.App.LogLevel = getEnvWithDefault("LOG_LEVEL", c.App.LogLevel)

	c.Broker.Provider = getEnvWithDefault("BROKER_PROVIDER", c.Broker.Provider)
	c.Broker.Environment = getEnvWithDefault("OANDA_ENVIRONMENT", c.Broker.Environment)
	c.Broker.BaseURL = getEnvWithDefault("BROKER_BASE_URL", c.Broker.BaseURL)
	c.Broker.AccessToken = os.Getenv("OANDA_ACCESS_TOKEN")
	c.Broker.TwelveDataKey = os.Getenv("TWELVE_API_KEY")
	c.Broker.PolygonKey = os.Getenv("POLYGON_API_KEY")
	c.Broker.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", c.Broker.RequestsPerSec)

	if v := getEnvList("INSTRUMENTS"); len(v) > 0 {
		c.Screener.Instruments = v
	}
	if v := getEnvList("TIMEFRAMES"); len(v) > 0 {
		c.Screener.Timeframes = v
	}
	c.Screener.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", c.Screener.CandleCount)
	c.Screener.CacheTTL = getEnvDurationWithDefault("CACHE_TTL", c.Screener.CacheTTL)
	c.Screener.RefreshInterval = getEnvDurationWithDefault("REFRESH_INTERVAL", c.Screener.RefreshInterval)
	c.Screener.Timezone = getEnvWithDefault("TIMEZONE", c.Screener.Timezone)

	c.Notify.CredentialsPath = os.Getenv("FIREBASE_CREDENTIALS_PATH")
	c.Notify.CredentialsJSON = os.Getenv("FIREBASE_CREDENTIALS_JSON")
	if c.Notify.CredentialsPath != "" || c.Notify.CredentialsJSON != "" {
		c.Notify.Enabled = true
	}
	c.Notify.Cooldown = getEnvDurationWithDefault("NOTIFY_COOLDOWN", c.Notify.Cooldown)
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Granularities(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Screener.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone: %w", err)
	}
	if c.Screener.CandleCount < c.Indicators.MinBars() {
		return fmt.Errorf("invalid config: candle_count %d below the %d bars the indicators need",
			c.Screener.CandleCount, c.Indicators.MinBars())
	}
	return nil
}

// Granularities parses the configured timeframes; H1 is mandatory since
// scoring reads its primary values from it.
func (c *Config) Granularities() ([]domain.Granularity, error) {
	out := make([]domain.Granularity, 0, len(c.Screener.Timeframes))
	hasH1 := false
	for _, tf := range c.Screener.Timeframes {
		g, err := domain.ParseGranularity(tf)
		if err != nil {
			return nil, err
		}
		if g == domain.GranularityH1 {
			hasH1 = true
		}
		out = append(out, g)
	}
	if !hasH1 {
		return nil, errors.New("timeframes must include H1")
	}
	return out, nil
}

// Location returns the display timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Screener.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
