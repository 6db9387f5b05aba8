package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"community-energy/internal/model"
	"community-energy/internal/simulation"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load the market snapshot from a separate YAML (e.g. examples/markets/*.yaml).
	// If both MarketFile and Market are provided, Market overrides MarketFile.
	MarketFile string           `yaml:"market_file"`
	Market     MarketConfig     `yaml:"market"`
	Simulation SimulationConfig `yaml:"simulation"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

type MarketConfig struct {
	Grid         GridConfig          `yaml:"grid"`
	Participants []ParticipantConfig `yaml:"participants"`
}

type GridConfig struct {
	Name         string  `yaml:"name"`
	Surplus      float64 `yaml:"surplus"`
	SellingPrice float64 `yaml:"selling_price"`
	BuyingPrice  float64 `yaml:"buying_price"`
	TokenPrice   float64 `yaml:"token_price"`
}

type ParticipantConfig struct {
	Name         string             `yaml:"name"`
	Surplus      float64            `yaml:"surplus"`
	Demand       float64            `yaml:"demand"`
	TransferCost map[string]float64 `yaml:"transfer_cost"`
}

type SimulationConfig struct {
	Nodes          int     `yaml:"nodes"`
	NodePrefix     string  `yaml:"node_prefix"`
	InitialBalance float64 `yaml:"initial_balance"`
	PoolCapacity   float64 `yaml:"pool_capacity"`
	Steps          int     `yaml:"steps"`
	Seed           int64   `yaml:"seed"`
	DrawFromPool   bool    `yaml:"draw_from_pool"`
	TradeMin       float64 `yaml:"trade_min"`
	TradeMax       float64 `yaml:"trade_max"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // none | leveldb | badger
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"` // empty allows any origin
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() *Config {
	c := Default()
	c.applyEnv()
	if c.Store.Path != "" && c.Store.Backend == "none" {
		c.Store.Backend = "leveldb"
	}
	return c
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	// If market_file is set, load it and merge in any explicit overrides from c.Market.
	if c.MarketFile != "" {
		marketPath := c.MarketFile
		if !filepath.IsAbs(marketPath) {
			// Prefer interpreting relative paths as relative to the config file directory,
			// but fall back to the provided path (relative to cwd) if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), marketPath)
			if _, err := os.Stat(cand); err == nil {
				marketPath = cand
			}
		}
		loaded, err := LoadMarketFile(marketPath)
		if err != nil {
			return nil, err
		}
		c.Market = MergeMarket(loaded, c.Market)
	}
	return &c, nil
}

// applyDefaults fills zero values. The simulation defaults are those of
// simulation.DefaultParams; a zero seed stays zero and means "time based".
func (c *Config) applyDefaults() {
	d := simulation.DefaultParams()
	s := &c.Simulation
	if s.Nodes == 0 {
		s.Nodes = d.Nodes
	}
	if s.NodePrefix == "" {
		s.NodePrefix = d.NodePrefix
	}
	if s.PoolCapacity == 0 {
		s.PoolCapacity = d.PoolCapacity
	}
	if s.Steps == 0 {
		s.Steps = 3
	}
	if s.TradeMin == 0 {
		s.TradeMin = d.TradeMin
	}
	if s.TradeMax == 0 {
		s.TradeMax = d.TradeMax
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "none"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./web/dist"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv applies the environment overrides understood by the binaries.
func (c *Config) applyEnv() {
	if v := os.Getenv("API_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("API_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Store.Backend {
	case "none":
	case "leveldb", "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for backend %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unsupported store.backend: %q", c.Store.Backend)
	}
	if c.Simulation.Steps < 0 {
		return errors.New("simulation.steps must be >= 0")
	}
	if err := c.Simulation.ToParams().Validate(); err != nil {
		return fmt.Errorf("simulation config invalid: %w", err)
	}
	// The market section is optional; validate it by building it when present.
	if len(c.Market.Participants) > 0 {
		if _, _, err := c.Market.ToSnapshot().Build(); err != nil {
			return fmt.Errorf("market config invalid: %w", err)
		}
	}
	return nil
}

func (s SimulationConfig) ToParams() simulation.Params {
	p := simulation.DefaultParams()
	p.Nodes = s.Nodes
	p.NodePrefix = s.NodePrefix
	p.InitialBalance = s.InitialBalance
	p.PoolCapacity = s.PoolCapacity
	p.DrawFromPool = s.DrawFromPool
	p.TradeMin = s.TradeMin
	p.TradeMax = s.TradeMax
	return p
}

func (m MarketConfig) ToSnapshot() model.MarketSnapshot {
	s := model.MarketSnapshot{
		Grid: model.GridState{
			Name:         m.Grid.Name,
			Surplus:      m.Grid.Surplus,
			SellingPrice: m.Grid.SellingPrice,
			BuyingPrice:  m.Grid.BuyingPrice,
			TokenPrice:   m.Grid.TokenPrice,
		},
		Participants: make([]model.ParticipantState, 0, len(m.Participants)),
	}
	for _, p := range m.Participants {
		s.Participants = append(s.Participants, model.ParticipantState{
			Name:         p.Name,
			Surplus:      p.Surplus,
			Demand:       p.Demand,
			TransferCost: p.TransferCost,
		})
	}
	return s
}

type marketFileWrapper struct {
	Market MarketConfig `yaml:"market"`
}

// LoadMarketFile reads a YAML file with a top-level "market" key.
func LoadMarketFile(path string) (MarketConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return MarketConfig{}, err
	}
	var w marketFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return MarketConfig{}, err
	}
	return w.Market, nil
}

// MergeMarket overlays non-zero fields from override onto base.
// Participants are matched by name; unknown names are appended in override order.
func MergeMarket(base, override MarketConfig) MarketConfig {
	out := base
	if override.Grid.Name != "" {
		out.Grid.Name = override.Grid.Name
	}
	if override.Grid.Surplus != 0 {
		out.Grid.Surplus = override.Grid.Surplus
	}
	if override.Grid.SellingPrice != 0 {
		out.Grid.SellingPrice = override.Grid.SellingPrice
	}
	if override.Grid.BuyingPrice != 0 {
		out.Grid.BuyingPrice = override.Grid.BuyingPrice
	}
	if override.Grid.TokenPrice != 0 {
		out.Grid.TokenPrice = override.Grid.TokenPrice
	}

	out.Participants = append([]ParticipantConfig(nil), base.Participants...)
	index := make(map[string]int, len(out.Participants))
	for i, p := range out.Participants {
		index[p.Name] = i
	}
	for _, o := range override.Participants {
		i, ok := index[o.Name]
		if !ok {
			index[o.Name] = len(out.Participants)
			out.Participants = append(out.Participants, o)
			continue
		}
		merged := out.Participants[i]
		// Note: surplus/demand overrides of 0 are ignored, like every other zero field.
		if o.Surplus != 0 {
			merged.Surplus = o.Surplus
		}
		if o.Demand != 0 {
			merged.Demand = o.Demand
		}
		if len(o.TransferCost) > 0 {
			costs := make(map[string]float64, len(merged.TransferCost)+len(o.TransferCost))
			for k, v := range merged.TransferCost {
				costs[k] = v
			}
			for k, v := range o.TransferCost {
				costs[k] = v
			}
			merged.TransferCost = costs
		}
		out.Participants[i] = merged
	}
	return out
}
