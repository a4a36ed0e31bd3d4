package missing

import (
	"testing"

	"github.com/netring-mesh/netring/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeHighCriticalityMissing(t *testing.T) {
	d := New(Descriptor{
		Locations: map[string]ExpectedLocation{
			"dc1": {ExpectedCount: 3, Criticality: CriticalityHigh},
		},
	})

	analysis := d.Analyze([]wire.Member{{Location: "dc1", InstanceID: "a"}})

	require.Contains(t, analysis.Locations, "dc1")
	assert.Equal(t, 2, analysis.Locations["dc1"].Missing)
	require.Len(t, analysis.Alerts, 1)
	assert.Equal(t, "error", analysis.Alerts[0].Level)
	assert.Equal(t, "dc1", analysis.Alerts[0].Location)
}

func TestAnalyzeMediumCriticalityNeedsTwoMissing(t *testing.T) {
	d := New(Descriptor{
		Locations: map[string]ExpectedLocation{
			"dc2": {ExpectedCount: 3, Criticality: CriticalityMedium},
		},
	})

	analysis := d.Analyze([]wire.Member{{Location: "dc2", InstanceID: "a"}, {Location: "dc2", InstanceID: "b"}})
	assert.Empty(t, analysis.Alerts, "missing=1 must not alert at medium criticality")

	analysis = d.Analyze([]wire.Member{{Location: "dc2", InstanceID: "a"}})
	require.Len(t, analysis.Alerts, 1)
	assert.Equal(t, "warning", analysis.Alerts[0].Level)
}

func TestAnalyzeUnexpectedLocation(t *testing.T) {
	d := New(Descriptor{Locations: map[string]ExpectedLocation{}})
	analysis := d.Analyze([]wire.Member{{Location: "dc9", InstanceID: "z"}})
	require.Contains(t, analysis.Locations, "dc9")
	assert.Equal(t, "unexpected_location", analysis.Locations["dc9"].Status)
}

func TestAnalyzeExtraMembers(t *testing.T) {
	d := New(Descriptor{
		Locations: map[string]ExpectedLocation{"dc1": {ExpectedCount: 1, Criticality: CriticalityLow}},
	})
	analysis := d.Analyze([]wire.Member{{Location: "dc1"}, {Location: "dc1"}})
	assert.Equal(t, "extra_members", analysis.Locations["dc1"].Status)
}
