package missing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type descriptorYAML struct {
	Locations map[string]struct {
		ExpectedCount int     `yaml:"expected_count"`
		Criticality   string  `yaml:"criticality"`
		GracePeriodS  float64 `yaml:"grace_period_s"`
		Description   string  `yaml:"description"`
	} `yaml:"locations"`
	Thresholds struct {
		CriticalMissing int `yaml:"critical_missing"`
		TotalMissing    int `yaml:"total_missing"`
	} `yaml:"thresholds"`
}

// LoadDescriptor reads the expected-topology descriptor from the YAML file
// named by registry.expected_members.config_file.
func LoadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read expected-topology descriptor %s: %w", path, err)
	}

	var raw descriptorYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Descriptor{}, fmt.Errorf("parse expected-topology descriptor %s: %w", path, err)
	}

	descriptor := Descriptor{
		Locations:                make(map[string]ExpectedLocation, len(raw.Locations)),
		CriticalMissingThreshold: raw.Thresholds.CriticalMissing,
		TotalMissingThreshold:    raw.Thresholds.TotalMissing,
	}
	for name, loc := range raw.Locations {
		descriptor.Locations[name] = ExpectedLocation{
			ExpectedCount: loc.ExpectedCount,
			Criticality:   Criticality(loc.Criticality),
			GracePeriodS:  loc.GracePeriodS,
			Description:   loc.Description,
		}
	}
	return descriptor, nil
}
