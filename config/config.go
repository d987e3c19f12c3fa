package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyamm/internal/access"
	"github.com/alejandrodnm/polyamm/internal/domain"
)

// Config es la configuración completa del simulador.
type Config struct {
	Pool       domain.PoolConfig `yaml:"pool"`
	Custody    CustodyConfig     `yaml:"custody"`
	Storage    StorageConfig     `yaml:"storage"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Access     access.Lists      `yaml:"access"`
	Simulation SimulationConfig  `yaml:"simulation"`
	Log        LogConfig         `yaml:"log"`
}

// CustodyConfig elige dónde vive el colateral. Sin URL se usa la custody en memoria.
type CustodyConfig struct {
	PoolAccount    string  `yaml:"pool_account"`
	URL            string  `yaml:"url"`
	APIKey         string  `yaml:"api_key"`
	Secret         string  `yaml:"secret"` // base64url, mejor vía CUSTODY_SECRET en .env
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// StorageConfig controla dónde se persiste el journal de eventos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta SQLite, ":memory:", postgres://...; vacío = sin journal
}

// MetricsConfig controla el endpoint Prometheus.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // ej. ":9108"; vacío = desactivado
}

// SimulationConfig describe el escenario que corre `ammsim simulate`.
type SimulationConfig struct {
	Seed            int64    `yaml:"seed"`
	Trades          int      `yaml:"trades"`
	Markets         []string `yaml:"markets"`
	MarketLiquidity uint64   `yaml:"market_liquidity"`
	Providers       []string `yaml:"providers"`
	ProviderDeposit uint64   `yaml:"provider_deposit"`
	Traders         []string `yaml:"traders"`
	TraderBalance   uint64   `yaml:"trader_balance"`
	MaxTradeAmount  uint64   `yaml:"max_trade_amount"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default devuelve la config que se usa sin archivo.
func Default() *Config {
	var cfg Config
	cfg.Pool = domain.PoolConfig{
		AMMModel:       domain.ModelHybrid,
		FeeBps:         30,
		SubsidyFactor:  100_000,
		MaxSlippageBps: 0,
		MinLiquidity:   100,
	}
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// Validate comprueba lo que el pool y los adapters van a necesitar.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("config.Validate: pool: %w", err)
	}
	if c.Custody.PoolAccount == "" {
		return fmt.Errorf("config.Validate: custody.pool_account is required")
	}
	if c.Custody.PoolAccount == c.Pool.TreasuryAccount {
		return fmt.Errorf("config.Validate: pool_account and treasury_account must differ")
	}
	if c.Custody.URL != "" && c.Custody.Secret == "" {
		return fmt.Errorf("config.Validate: custody.secret is required with custody.url")
	}
	return nil
}

// CustodyTimeout devuelve el timeout HTTP de custody como time.Duration.
func (c *Config) CustodyTimeout() time.Duration {
	return time.Duration(c.Custody.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("CUSTODY_URL"); v != "" {
		cfg.Custody.URL = v
	}
	if v := os.Getenv("CUSTODY_API_KEY"); v != "" {
		cfg.Custody.APIKey = v
	}
	if v := os.Getenv("CUSTODY_SECRET"); v != "" {
		cfg.Custody.Secret = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Pool.TreasuryAccount == "" {
		cfg.Pool.TreasuryAccount = "treasury"
	}
	if cfg.Pool.SubsidyFactor == 0 && cfg.Pool.AMMModel.UsesLMSR() {
		cfg.Pool.SubsidyFactor = 100_000
	}
	if cfg.Custody.PoolAccount == "" {
		cfg.Custody.PoolAccount = "pool"
	}
	if cfg.Custody.TimeoutSeconds <= 0 {
		cfg.Custody.TimeoutSeconds = 10
	}

	sim := &cfg.Simulation
	if sim.Seed == 0 {
		sim.Seed = 1
	}
	if sim.Trades <= 0 {
		sim.Trades = 200
	}
	if len(sim.Markets) == 0 {
		sim.Markets = []string{"m1"}
	}
	if sim.MarketLiquidity == 0 {
		sim.MarketLiquidity = 200_000
	}
	if len(sim.Providers) == 0 {
		sim.Providers = []string{"lp1"}
	}
	if sim.ProviderDeposit == 0 {
		sim.ProviderDeposit = 100_000
	}
	if len(sim.Traders) == 0 {
		sim.Traders = []string{"t1", "t2"}
	}
	if sim.TraderBalance == 0 {
		sim.TraderBalance = 1_000_000
	}
	if sim.MaxTradeAmount == 0 {
		sim.MaxTradeAmount = 1_000
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
