package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	p := write(t, "tuning.yaml", `
tick_rate_hz: 20
market:
  max_price: 999
  claim_cost: {item: coin, count: 100}
`)
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 20 || tu.Market.MaxPrice != 999 || tu.Market.ClaimCost.Item != "coin" {
		t.Fatalf("tuning=%+v", tu)
	}
	if tu.Market.PlotRadius != 2.3 || tu.Market.ContainerSlots != 35 {
		t.Fatalf("defaults lost: %+v", tu.Market)
	}
}

func TestLoadTOML(t *testing.T) {
	p := write(t, "tuning.toml", `
tick_rate_hz = 5

[market]
allow_player_plots = true
inactivity_days = 7

[[market.starter_items]]
item = "coin"
count = 50
`)
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 5 || !tu.Market.AllowPlayerPlots || tu.Market.InactivityDays != 7 {
		t.Fatalf("tuning=%+v", tu)
	}
	if len(tu.Market.StarterItems) != 1 || tu.Market.StarterItems[0].Count != 50 {
		t.Fatalf("starter=%+v", tu.Market.StarterItems)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"slots.yaml":  "market: {container_slots: 40}\n",
		"radius.yaml": "market: {plot_radius: -1}\n",
		"cost.yaml":   "market: {claim_cost: {count: 5}}\n",
	}
	for name, body := range cases {
		if _, err := Load(write(t, name, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}
