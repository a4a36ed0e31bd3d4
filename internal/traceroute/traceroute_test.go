package traceroute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreeHops(t *testing.T) {
	input := " 1  192.168.1.1  1.234 ms\n 2  10.0.0.1  5.678 ms\n 3  8.8.8.8  12.345 ms\n"
	result := Parse(input)

	require.Equal(t, 3, result.TotalHops)
	assert.InDelta(t, 12.345, result.MaxHopLatency, 0.001)
	require.Len(t, result.Hops, 3)
	assert.Equal(t, "8.8.8.8", result.Hops[2].IP)
}

func TestParseAsteriskLineCounted(t *testing.T) {
	input := " 1  192.168.1.1  1.234 ms\n 2  * * *\n"
	result := Parse(input)

	require.Equal(t, 2, result.TotalHops)
	assert.Nil(t, result.Hops[1].LatencyMs)
	assert.Equal(t, "*", result.Hops[1].IP)
	assert.InDelta(t, 1.234, result.MaxHopLatency, 0.001)
}

func TestParseEmptyInput(t *testing.T) {
	result := Parse("")
	assert.Equal(t, 0, result.TotalHops)
	assert.Equal(t, 0.0, result.MaxHopLatency)
}

func TestParseMalformedInput(t *testing.T) {
	result := Parse("traceroute: command not found\nsome garbage\n")
	assert.Equal(t, 0, result.TotalHops)
	assert.Equal(t, 0.0, result.MaxHopLatency)
}
