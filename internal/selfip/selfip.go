// Package selfip resolves the local member's advertised IP address.
// Self-IP detection is intentionally heuristic: two pluggable resolvers
// are provided, both matching the contract () (string, error).
package selfip

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// Resolver resolves the current host's advertisable IP address.
type Resolver func() (string, error)

// Env returns a Resolver that reads the named environment variable
// verbatim, for managed environments that inject a pod/container IP.
func Env(varName string) Resolver {
	return func() (string, error) {
		v, ok := os.LookupEnv(varName)
		if !ok || v == "" {
			return "", fmt.Errorf("env %s not set", varName)
		}
		return v, nil
	}
}

// SocketProbe returns a Resolver that opens a UDP "connection" to an
// external address (no packets are sent) and reads back the local address
// the kernel would route through — the default-route socket trick, for
// bare-metal or VM deployments with no pod-IP env hints.
func SocketProbe() Resolver {
	return func() (string, error) {
		conn, err := net.Dial("udp", "8.8.8.8:80")
		if err != nil {
			return "", fmt.Errorf("socket probe: %w", err)
		}
		defer conn.Close()
		addr, ok := conn.LocalAddr().(*net.UDPAddr)
		if !ok {
			return "", fmt.Errorf("socket probe: unexpected local addr type")
		}
		return addr.IP.String(), nil
	}
}

// podIPEnvHints are checked, in order, before falling back to the socket
// probe, matching common container-orchestrator conventions.
var podIPEnvHints = []string{"POD_IP", "HOST_IP"}

// Auto resolves "auto": try pod-IP env hints, then the socket probe.
func Auto() (string, error) {
	for _, name := range podIPEnvHints {
		if v, err := Env(name)(); err == nil {
			return v, nil
		}
	}
	return SocketProbe()()
}

// Resolve interprets a configured advertise_ip value: "auto", "env:NAME",
// or a literal address.
func Resolve(advertiseIP string) (string, error) {
	switch {
	case advertiseIP == "" || advertiseIP == "auto":
		return Auto()
	case strings.HasPrefix(advertiseIP, "env:"):
		name := strings.TrimPrefix(advertiseIP, "env:")
		return Env(name)()
	default:
		if net.ParseIP(advertiseIP) == nil {
			return "", fmt.Errorf("advertise_ip %q is not a valid literal address", advertiseIP)
		}
		return advertiseIP, nil
	}
}

// IsPrivate reports whether ip falls within the RFC 1918 private ranges:
// 10.0.0.0/8, 172.16.0.0-172.31.255.255, 192.168.0.0/16.
func IsPrivate(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	v4 := parsed.To4()
	if v4 == nil {
		return false
	}
	switch {
	case v4[0] == 10:
		return true
	case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
		return true
	case v4[0] == 192 && v4[1] == 168:
		return true
	default:
		return false
	}
}
