package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FeatureConfig declares which derived features and vendor indicators a
// features-mode run computes per symbol.
type FeatureConfig struct {
	Core struct {
		Derived []string `yaml:"derived"`
	} `yaml:"core"`
	Technicals TechnicalList `yaml:"technicals"`
}

// Technical is one configured vendor indicator. Either Periods is set (one
// vendor call per period, parameterizing time_period) or Params carries an
// arbitrary parameter map passed through to the vendor call.
type Technical struct {
	Name    string
	Periods []int
	Params  map[string]any
}

// TechnicalList preserves the document order of the technicals mapping so
// that a later indicator's fields win on key collision.
type TechnicalList []Technical

// UnmarshalYAML decodes the technicals section from a YAML mapping node,
// keeping the entries in document order.
func (tl *TechnicalList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("technicals: expected a mapping, got %s", node.Tag)
	}

	out := make(TechnicalList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		tech := Technical{Name: keyNode.Value}

		// A block carrying a "periods" list is the short form; anything else
		// is an opaque parameter map for the vendor call.
		var withPeriods struct {
			Periods []int `yaml:"periods"`
		}
		if err := valNode.Decode(&withPeriods); err == nil && len(withPeriods.Periods) > 0 {
			tech.Periods = withPeriods.Periods
		} else {
			params := map[string]any{}
			if err := valNode.Decode(&params); err != nil {
				return fmt.Errorf("technicals.%s: %w", keyNode.Value, err)
			}
			tech.Params = params
		}
		out = append(out, tech)
	}

	*tl = out
	return nil
}

// LoadFeatures reads a feature configuration YAML document. An empty path
// yields an empty configuration (no derived features, no technicals).
func LoadFeatures(path string) (*FeatureConfig, error) {
	if path == "" {
		return &FeatureConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature config %s: %w", path, err)
	}

	fc := &FeatureConfig{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("parsing feature config %s: %w", path, err)
	}
	return fc, nil
}
