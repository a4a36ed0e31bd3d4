// Package missing implements the missing-member detector: it cross
// references live membership against a declarative expected-topology
// descriptor and raises criticality-graded alerts.
package missing

import (
	"fmt"

	"github.com/netring-mesh/netring/internal/wire"
)

// Criticality is the severity class assigned to an expected location.
type Criticality string

const (
	CriticalityHigh   Criticality = "high"
	CriticalityMedium Criticality = "medium"
	CriticalityLow    Criticality = "low"
)

// ExpectedLocation is one entry of the expected-topology descriptor.
type ExpectedLocation struct {
	ExpectedCount int
	Criticality   Criticality
	GracePeriodS  float64
	Description   string
}

// Descriptor is the static, immutable expected-topology configuration
// loaded at registry start.
type Descriptor struct {
	Locations                map[string]ExpectedLocation
	CriticalMissingThreshold int
	TotalMissingThreshold    int
}

// Detector evaluates a Descriptor against a live membership snapshot.
type Detector struct {
	descriptor Descriptor
}

// New creates a Detector bound to descriptor.
func New(descriptor Descriptor) *Detector {
	return &Detector{descriptor: descriptor}
}

// Analyze computes the per-location status and alerts for the given set of
// active members.
func (d *Detector) Analyze(activeMembers []wire.Member) wire.MissingAnalysis {
	actualByLocation := make(map[string]int)
	for _, m := range activeMembers {
		actualByLocation[m.Location]++
	}

	locations := make(map[string]wire.LocationAnalysis)
	var alerts []wire.Alert

	criticalMissing := 0
	totalMissing := 0

	for name, expected := range d.descriptor.Locations {
		actual := actualByLocation[name]
		missingCount := expected.ExpectedCount - actual
		if missingCount < 0 {
			missingCount = 0
		}

		status := "healthy"
		switch {
		case actual > expected.ExpectedCount:
			status = "extra_members"
		case missingCount > 0:
			status = "missing_members"
		}

		locations[name] = wire.LocationAnalysis{
			Expected:    expected.ExpectedCount,
			Actual:      actual,
			Missing:     missingCount,
			Criticality: string(expected.Criticality),
			Status:      status,
			Description: expected.Description,
		}

		if expected.Criticality == CriticalityHigh && missingCount > 0 {
			alerts = append(alerts, wire.Alert{
				Level:    "error",
				Location: name,
				Message:  fmt.Sprintf("location %s is missing %d of %d expected members", name, missingCount, expected.ExpectedCount),
			})
			criticalMissing++
		} else if expected.Criticality == CriticalityMedium && missingCount >= 2 {
			alerts = append(alerts, wire.Alert{
				Level:    "warning",
				Location: name,
				Message:  fmt.Sprintf("location %s is missing %d of %d expected members", name, missingCount, expected.ExpectedCount),
			})
		}

		totalMissing += missingCount
	}

	for name, actual := range actualByLocation {
		if _, expected := d.descriptor.Locations[name]; expected {
			continue
		}
		locations[name] = wire.LocationAnalysis{
			Actual: actual,
			Status: "unexpected_location",
		}
	}

	if d.descriptor.CriticalMissingThreshold > 0 && criticalMissing >= d.descriptor.CriticalMissingThreshold {
		alerts = append(alerts, wire.Alert{
			Level:   "error",
			Message: fmt.Sprintf("%d critical locations missing members", criticalMissing),
		})
	} else if d.descriptor.TotalMissingThreshold > 0 && totalMissing >= d.descriptor.TotalMissingThreshold {
		alerts = append(alerts, wire.Alert{
			Level:   "warning",
			Message: fmt.Sprintf("%d total members missing across all locations", totalMissing),
		})
	}

	return wire.MissingAnalysis{
		Locations: locations,
		Alerts:    alerts,
		Summary: wire.MissingSummary{
			CriticalMissing: criticalMissing,
			TotalMissing:    totalMissing,
		},
	}
}
