package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxResults caps Search output.
const MaxResults = 20

const defaultStack = 4000

type ItemDef struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Stack int    `yaml:"stack,omitempty" json:"stack,omitempty"`
}

type ItemCatalog struct {
	Defs    map[string]ItemDef
	Palette []string
	Digest  string

	norm map[string]string
}

type itemFile struct {
	Items []ItemDef `yaml:"items"`
}

// Load reads an items file of the form `items: [{id, name, stack}]`.
func Load(path string) (*ItemCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f itemFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := New(f.Items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

func New(defs []ItemDef) (*ItemCatalog, error) {
	c := &ItemCatalog{
		Defs: make(map[string]ItemDef, len(defs)),
		norm: make(map[string]string, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("items: empty id")
		}
		if _, dup := c.Defs[d.ID]; dup {
			return nil, fmt.Errorf("items: duplicate id %q", d.ID)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.Stack <= 0 {
			d.Stack = defaultStack
		}
		c.Defs[d.ID] = d
		c.norm[d.ID] = Normalize(d.Name)
		c.Palette = append(c.Palette, d.ID)
	}
	sort.Strings(c.Palette)
	var sb strings.Builder
	for _, id := range c.Palette {
		d := c.Defs[id]
		fmt.Fprintf(&sb, "%s|%s|%d\n", d.ID, d.Name, d.Stack)
	}
	c.Digest = sha256Hex([]byte(sb.String()))
	return c, nil
}

// Defaults is the built-in catalog used when no items file is configured.
func Defaults() *ItemCatalog {
	c, _ := New([]ItemDef{
		{ID: "coin", Name: "Coin"},
		{ID: "gem", Name: "Gem", Stack: 500},
		{ID: "blocked_slot", Name: "Blocked Slot", Stack: 1},
		{ID: "sword", Name: "Sword", Stack: 1},
		{ID: "iron_sword", Name: "Iron Sword", Stack: 1},
		{ID: "shield", Name: "Shield", Stack: 1},
		{ID: "bow", Name: "Bow", Stack: 1},
		{ID: "arrow", Name: "Arrow", Stack: 200},
		{ID: "bread", Name: "Bread", Stack: 50},
		{ID: "apple", Name: "Apple", Stack: 50},
		{ID: "iron_ingot", Name: "Iron Ingot", Stack: 100},
		{ID: "gold_ingot", Name: "Gold Ingot", Stack: 100},
		{ID: "wood", Name: "Wood", Stack: 250},
		{ID: "stone", Name: "Stone", Stack: 250},
		{ID: "potion_small", Name: "Potion (Small)", Stack: 20},
		{ID: "potion_large", Name: "Potion (Large)", Stack: 20},
	})
	return c
}

func (c *ItemCatalog) Get(id string) (ItemDef, bool) {
	d, ok := c.Defs[id]
	return d, ok
}

// Name returns the display name of id, or id itself when unknown.
func (c *ItemCatalog) Name(id string) string {
	if d, ok := c.Defs[id]; ok {
		return d.Name
	}
	return id
}

// Stack returns the stack size of id; unknown items get the default.
func (c *ItemCatalog) Stack(id string) int {
	if d, ok := c.Defs[id]; ok {
		return d.Stack
	}
	return defaultStack
}

// Normalize lowercases s and strips parentheses and spaces.
func Normalize(s string) string {
	return strings.NewReplacer("(", "", ")", "", " ", "").Replace(strings.ToLower(s))
}

// Find matches a display name exactly after normalization.
func (c *ItemCatalog) Find(name string) (ItemDef, bool) {
	q := Normalize(name)
	if q == "" {
		return ItemDef{}, false
	}
	for _, id := range c.Palette {
		if c.norm[id] == q {
			return c.Defs[id], true
		}
	}
	return ItemDef{}, false
}

// Search returns up to MaxResults items whose normalized name contains the
// query. Prefix matches sort first, then shorter names, then by name.
func (c *ItemCatalog) Search(query string) []ItemDef {
	q := Normalize(query)
	if q == "" {
		return nil
	}
	var out []ItemDef
	for _, id := range c.Palette {
		if strings.Contains(c.norm[id], q) {
			out = append(out, c.Defs[id])
			if len(out) >= MaxResults {
				break
			}
		}
	}
	rank := func(d ItemDef) int {
		if strings.HasPrefix(Normalize(d.Name), q) {
			return 0
		}
		return 1
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		if len(out[i].Name) != len(out[j].Name) {
			return len(out[i].Name) < len(out[j].Name)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Resolve turns a player-typed item name into a single item. With no exact
// hit it falls back to Search; a single candidate is accepted, otherwise the
// candidates are returned for the caller to list.
func (c *ItemCatalog) Resolve(name string) (ItemDef, []ItemDef, bool) {
	if d, ok := c.Find(name); ok {
		return d, nil, true
	}
	if d, ok := c.Defs[name]; ok {
		return d, nil, true
	}
	cands := c.Search(name)
	if len(cands) == 1 {
		return cands[0], nil, true
	}
	return ItemDef{}, cands, false
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
