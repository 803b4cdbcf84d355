package tuning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" toml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz" toml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" toml:"snapshot_every_ticks"`
	SweepEveryTicks    int `yaml:"sweep_every_ticks" toml:"sweep_every_ticks"`

	Market    Market    `yaml:"market" toml:"market"`
	RateLimit RateLimit `yaml:"rate_limit" toml:"rate_limit"`
}

type Market struct {
	PlotRadius       float64     `yaml:"plot_radius" toml:"plot_radius"`
	ContainerSlots   int         `yaml:"container_slots" toml:"container_slots"`
	MaxPrice         int         `yaml:"max_price" toml:"max_price"`
	ClaimCost        ItemCount   `yaml:"claim_cost" toml:"claim_cost"`
	AllowPlayerPlots bool        `yaml:"allow_player_plots" toml:"allow_player_plots"`
	InactivityDays   int         `yaml:"inactivity_days" toml:"inactivity_days"`
	DropEmptyOnLoad  bool        `yaml:"drop_empty_traders_on_load" toml:"drop_empty_traders_on_load"`
	BlockSlotItem    string      `yaml:"block_slot_item" toml:"block_slot_item"`
	StarterItems     []ItemCount `yaml:"starter_items" toml:"starter_items"`
}

type ItemCount struct {
	Item  string `yaml:"item" toml:"item"`
	Count int    `yaml:"count" toml:"count"`
}

type RateLimit struct {
	EventsPerSecond float64 `yaml:"events_per_second" toml:"events_per_second"`
	Burst           int     `yaml:"burst" toml:"burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         10,
		SnapshotEveryTicks: 3000,
		SweepEveryTicks:    36000,
		Market: Market{
			PlotRadius:     2.3,
			ContainerSlots: 35,
			MaxPrice:       4000,
			InactivityDays: 30,
			BlockSlotItem:  "blocked_slot",
		},
		RateLimit: RateLimit{EventsPerSecond: 20, Burst: 40},
	}
}

// Load reads a YAML or TOML file, chosen by extension. Keys the file leaves
// out keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &t); err != nil {
			return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.Market.PlotRadius <= 0:
		return fmt.Errorf("market.plot_radius must be > 0")
	case t.Market.ContainerSlots != 35:
		return fmt.Errorf("market.container_slots must be 35, got %d", t.Market.ContainerSlots)
	case t.Market.MaxPrice <= 0:
		return fmt.Errorf("market.max_price must be > 0")
	case t.Market.ClaimCost.Count < 0:
		return fmt.Errorf("market.claim_cost.count must be >= 0")
	case t.Market.ClaimCost.Count > 0 && t.Market.ClaimCost.Item == "":
		return fmt.Errorf("market.claim_cost.item is required when count > 0")
	case t.RateLimit.EventsPerSecond <= 0 || t.RateLimit.Burst <= 0:
		return fmt.Errorf("rate_limit needs positive events_per_second and burst")
	}
	return nil
}
