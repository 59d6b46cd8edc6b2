package strategy

import (
	"fmt"
	"sort"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
)

// Factory builds a strategy from the free-form params block of a run
// configuration.
type Factory func(params map[string]interface{}) (models.Strategy, error)

var registry = map[string]Factory{
	"sma_crossover": NewSmaCrossoverFromParams,
	"rsi_momentum":  NewRsiMomentumFromParams,
	"sentiment":     NewSentimentFromParams,
}

// New resolves a strategy by name at run-configuration time. The set of
// strategies is closed; unknown names fail before a run starts.
func New(name string, params map[string]interface{}) (models.Strategy, error) {
	factory, found := registry[name]
	if !found {
		return nil, fmt.Errorf("unknown strategy %q, available: %v", name, Names())
	}

	return factory(params)
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func intParam(params map[string]interface{}, key string, fallback int) (int, error) {
	value, found := params[key]
	if !found {
		return fallback, nil
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("param %q: expected integer, got %T", key, value)
	}
}

func floatParam(params map[string]interface{}, key string, fallback float64) (float64, error) {
	value, found := params[key]
	if !found {
		return fallback, nil
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("param %q: expected number, got %T", key, value)
	}
}
