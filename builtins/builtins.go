// Package builtins provides the native tool units compiled into petaltools.
package builtins

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"

	"github.com/petal-labs/petaltools/tool"
)

// Config selects and configures the built-in units.
type Config struct {
	// Enabled lists the units to expose. Empty enables all of them.
	Enabled        []string
	WeatherBaseURL string
	MarketBaseURL  string
	HTTPClient     *http.Client
}

// Names returns every built-in unit name in lexical order.
func Names() []string {
	return []string{"market_recap", "weather"}
}

// Descriptors returns the enabled built-in descriptors.
func Descriptors(cfg Config) ([]tool.Descriptor, error) {
	all := map[string]tool.Descriptor{
		"market_recap": MarketRecap(cfg.MarketBaseURL, cfg.HTTPClient),
		"weather":      Weather(cfg.WeatherBaseURL, cfg.HTTPClient),
	}

	enabled := cfg.Enabled
	if len(enabled) == 0 {
		enabled = Names()
	}
	out := make([]tool.Descriptor, 0, len(enabled))
	for _, name := range enabled {
		name = strings.TrimSpace(name)
		desc, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("unknown built-in tool %q (available: %s)", name, strings.Join(Names(), ", "))
		}
		if slices.ContainsFunc(out, func(d tool.Descriptor) bool { return d.Name == name }) {
			continue
		}
		out = append(out, desc)
	}
	return out, nil
}

// Source returns a static registry source over the enabled built-ins.
func Source(cfg Config) (tool.Source, error) {
	descs, err := Descriptors(cfg)
	if err != nil {
		return nil, err
	}
	return tool.NewStaticSource("builtins", descs...), nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
