package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const marketYAML = `
market:
  grid:
    surplus: 10
    selling_price: 0.10
    buying_price: 0.15
    token_price: 0.12
  participants:
    - name: A
      surplus: 20
      transfer_cost: {B: 0.01}
    - name: B
      demand: 10
      transfer_cost: {A: 0.01}
`

func TestLoad_MarketFileRelativeToConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "markets/m.yaml", marketYAML)
	cfgPath := writeFile(t, dir, "config.yaml", `
market_file: markets/m.yaml
market:
  grid:
    token_price: 0.2
  participants:
    - name: B
      demand: 12
    - name: C
      surplus: 1
      transfer_cost: {A: 0.5, B: 0.5}
simulation:
  seed: 9
`)

	c, err := LoadUnchecked(cfgPath)
	if err != nil {
		t.Fatalf("LoadUnchecked: %v", err)
	}
	m := c.Market
	if m.Grid.TokenPrice != 0.2 || m.Grid.Surplus != 10 {
		t.Errorf("grid merge = %+v", m.Grid)
	}
	if len(m.Participants) != 3 {
		t.Fatalf("participants = %+v", m.Participants)
	}
	if m.Participants[1].Name != "B" || m.Participants[1].Demand != 12 || m.Participants[1].TransferCost["A"] != 0.01 {
		t.Errorf("B merge = %+v", m.Participants[1])
	}
	if m.Participants[2].Name != "C" {
		t.Errorf("appended participant = %+v", m.Participants[2])
	}
	if c.Simulation.Seed != 9 {
		t.Errorf("seed = %d", c.Simulation.Seed)
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("STORE_PATH", "/tmp/chain")
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "store:\n  backend: badger\n")

	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != "9090" || c.Store.Path != "/tmp/chain" {
		t.Errorf("env overrides not applied: %+v %+v", c.Server, c.Store)
	}
	if c.Simulation.Nodes != 5 || c.Simulation.PoolCapacity != 100 || c.Simulation.Steps != 3 {
		t.Errorf("simulation defaults = %+v", c.Simulation)
	}
	p := c.Simulation.ToParams()
	if p.RateMin != 0.5 || p.JitterMax != 1.2 {
		t.Errorf("params = %+v", p)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("API_ENV", "production")
	t.Setenv("STORE_PATH", "/var/lib/chain")
	c := FromEnv()
	if c.Server.Env != "production" || c.Store.Backend != "leveldb" || c.Store.Path != "/var/lib/chain" {
		t.Errorf("FromEnv = %+v %+v", c.Server, c.Store)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"leveldb without path", func(c *Config) { c.Store.Backend = "leveldb"; c.Store.Path = "" }},
		{"bad trade range", func(c *Config) { c.Simulation.TradeMax = 0.1 }},
		{"negative steps", func(c *Config) { c.Simulation.Steps = -1 }},
		{"negative participant surplus", func(c *Config) {
			c.Market.Participants = []ParticipantConfig{{Name: "A", Surplus: -1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mut(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestMarketConfig_ToSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "m.yaml", marketYAML)
	m, err := LoadMarketFile(path)
	if err != nil {
		t.Fatalf("LoadMarketFile: %v", err)
	}
	ps, g, err := m.ToSnapshot().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(ps) != 2 || g.SellingPrice != 0.10 {
		t.Errorf("snapshot = %v %+v", ps, g)
	}
}
