// Package indicator maps the leak indicator a store picks to the risk
// classification stamped on the ticket.
package indicator

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"leakdesk/internal/apperr"
	"leakdesk/internal/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Entry struct {
	Indicator      string         `yaml:"indicator" json:"indicator"`
	Risk           string         `yaml:"risk" json:"risk"`
	Urgency        models.Urgency `yaml:"urgency" json:"urgency"`
	Impact         string         `yaml:"impact" json:"impact"`
	Recommendation string         `yaml:"recommendation" json:"recommendation"`
}

type Catalog struct {
	entries []Entry
	byKey   map[string]int
}

type file struct {
	Indicators []Entry `yaml:"indicators"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("indicator: embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file, or returns the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read indicator catalog: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse indicator catalog: %w", err)
	}
	if len(f.Indicators) == 0 {
		return nil, fmt.Errorf("indicator catalog is empty")
	}
	c := &Catalog{byKey: make(map[string]int, len(f.Indicators))}
	for i, e := range f.Indicators {
		e.Indicator = strings.TrimSpace(e.Indicator)
		if e.Indicator == "" {
			return nil, fmt.Errorf("indicator catalog entry %d: indicator text is empty", i)
		}
		e.Urgency = models.Urgency(strings.ToUpper(string(e.Urgency)))
		switch e.Urgency {
		case models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh:
		default:
			return nil, fmt.Errorf("indicator catalog entry %d: unknown urgency %q", i, e.Urgency)
		}
		k := key(e.Indicator)
		if _, dup := c.byKey[k]; dup {
			return nil, fmt.Errorf("indicator catalog entry %d: duplicate indicator", i)
		}
		c.byKey[k] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func key(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }

func (c *Catalog) Entries() []Entry { return append([]Entry(nil), c.entries...) }

// Derive looks up the classification for an indicator. Whitespace and
// case differences are ignored.
func (c *Catalog) Derive(indicator string) (Entry, error) {
	i, ok := c.byKey[key(indicator)]
	if !ok {
		return Entry{}, &apperr.ValidationError{Op: "derive", Fields: []string{"indicator"}}
	}
	return c.entries[i], nil
}

// Stamp copies the derived fields onto t.
func (e Entry) Stamp(t *models.Ticket) {
	t.Indicator = e.Indicator
	t.RiskLevel = e.Risk
	t.BusinessImpact = e.Impact
	t.Recommendation = e.Recommendation
	t.Urgency = e.Urgency
}
