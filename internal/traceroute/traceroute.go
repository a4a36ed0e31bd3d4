// Package traceroute invokes the host's traceroute binary and parses its
// output into the per-hop shape the topology engine consumes.
package traceroute

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/netring-mesh/netring/internal/wire"
)

// Result is the parsed outcome of one traceroute invocation.
type Result struct {
	Hops          []wire.Hop
	TotalHops     int
	MaxHopLatency float64
}

var (
	hopLine     = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s+([\d.]+)\s*ms`)
	timeoutLine = regexp.MustCompile(`^\s*(\d+)\s+\*`)
)

// Parse reads raw traceroute stdout and extracts hop entries. Asterisk
// lines count toward total_hops with a nil latency; lines matching neither
// shape are skipped entirely; empty or malformed input yields zero hops
// and zero max latency.
func Parse(output string) Result {
	var result Result
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if m := hopLine.FindStringSubmatch(line); m != nil {
			hopNum, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			latency, err := strconv.ParseFloat(m[3], 64)
			if err != nil {
				continue
			}
			result.Hops = append(result.Hops, wire.Hop{
				HopNumber: hopNum,
				IP:        m[2],
				LatencyMs: &latency,
			})
			result.TotalHops++
			if latency > result.MaxHopLatency {
				result.MaxHopLatency = latency
			}
			continue
		}

		if m := timeoutLine.FindStringSubmatch(line); m != nil {
			hopNum, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			result.Hops = append(result.Hops, wire.Hop{
				HopNumber: hopNum,
				IP:        "*",
				LatencyMs: nil,
			})
			result.TotalHops++
		}
	}
	return result
}

// Run invokes the system traceroute binary against target with numeric
// output, a 3-second per-hop wait, and 1 probe per hop. Any non-zero exit
// is treated as an un-parseable route and returned as an error; the caller
// should simply skip this cycle's contribution.
func Run(ctx context.Context, target string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "traceroute", "-n", "-w", "3", "-q", "1", target)
	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("traceroute %s: %w", target, err)
	}
	return Parse(string(out)), nil
}
