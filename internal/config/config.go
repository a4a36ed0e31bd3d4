// Package config loads member and registry configuration from a YAML file,
// with environment-variable fallback when no file is supplied.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every uppercased, underscore-joined config key
// when falling back to environment variables.
const EnvPrefix = "NETRING_"

// Intervals holds the six loop intervals and their initial delays, all in
// seconds.
type Intervals struct {
	HeartbeatInterval     float64 `yaml:"heartbeat_interval"`
	PollInterval          float64 `yaml:"poll_interval"`
	CheckInterval         float64 `yaml:"check_interval"`
	BandwidthTestInterval float64 `yaml:"bandwidth_test_interval"`
	BandwidthTestDelay    float64 `yaml:"bandwidth_test_delay"`
	TracerouteInterval    float64 `yaml:"traceroute_interval"`
	TracerouteDelay       float64 `yaml:"traceroute_delay"`
	ReportInterval        float64 `yaml:"report_interval"`
	ReportDelay           float64 `yaml:"report_delay"`
	MonitorInterval       float64 `yaml:"monitor_interval"`
	TaskTimeout           float64 `yaml:"task_timeout"`
}

// Checks holds connectivity-check tunables.
type Checks struct {
	TCPTimeout    float64  `yaml:"tcp_timeout"`
	HTTPTimeout   float64  `yaml:"http_timeout"`
	HTTPEndpoints []string `yaml:"http_endpoints"`
}

// Server holds the member's own HTTP listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	AdvertiseIP string `yaml:"advertise_ip"`
}

// Tests holds synthetic-test tunables.
type Tests struct {
	BandwidthTestSizeMB int `yaml:"bandwidth_test_size_mb"`
}

// Registry holds the member's view of how to reach the registry.
type Registry struct {
	URL string `yaml:"url"`
}

// MemberConfig is the full configuration for cmd/member.
type MemberConfig struct {
	Location   string    `yaml:"location"`
	InstanceID string    `yaml:"instance_id"`
	Registry   Registry  `yaml:"registry"`
	Intervals  Intervals `yaml:"intervals"`
	Checks     Checks    `yaml:"checks"`
	Server     Server    `yaml:"server"`
	Tests      Tests     `yaml:"tests"`
}

// DefaultMemberConfig returns the member's default tuning.
func DefaultMemberConfig() MemberConfig {
	return MemberConfig{
		Location: "default",
		Registry: Registry{URL: "http://localhost:8500"},
		Intervals: Intervals{
			HeartbeatInterval:     45,
			PollInterval:          30,
			CheckInterval:         60,
			BandwidthTestInterval: 300,
			BandwidthTestDelay:    60,
			TracerouteInterval:    300,
			TracerouteDelay:       90,
			ReportInterval:        60,
			ReportDelay:           30,
			MonitorInterval:       60,
			TaskTimeout:           300,
		},
		Checks: Checks{
			TCPTimeout:    5,
			HTTPTimeout:   5,
			HTTPEndpoints: []string{"/health"},
		},
		Server: Server{
			Host:        "0.0.0.0",
			Port:        8080,
			AdvertiseIP: "auto",
		},
		Tests: Tests{BandwidthTestSizeMB: 1},
	}
}

// RedisConfig describes how the registry reaches its store.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// ExpectedMembers configures the missing-member detector.
type ExpectedMembers struct {
	ConfigFile             string  `yaml:"config_file"`
	EnableMissingDetection bool    `yaml:"enable_missing_detection"`
	MissingCheckInterval   float64 `yaml:"missing_check_interval"`
}

// RegistryOptions holds every option recognized under the registry: block.
type RegistryOptions struct {
	Redis           RedisConfig     `yaml:"redis"`
	Server          Server          `yaml:"server"`
	MemberTTL       float64         `yaml:"member_ttl"`
	CleanupInterval float64         `yaml:"cleanup_interval"`
	ExpectedMembers ExpectedMembers `yaml:"expected_members"`
}

// RegistryConfig is the full configuration for cmd/registry. All options
// nest under a top-level registry: block, so the env equivalents carry a
// NETRING_REGISTRY_ prefix.
type RegistryConfig struct {
	Registry RegistryOptions `yaml:"registry"`
}

// DefaultRegistryConfig returns the registry's default tuning.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Registry: RegistryOptions{
			Redis:           RedisConfig{Host: "localhost", Port: 6379},
			Server:          Server{Host: "0.0.0.0", Port: 8500},
			MemberTTL:       300,
			CleanupInterval: 60,
			ExpectedMembers: ExpectedMembers{
				EnableMissingDetection: false,
				MissingCheckInterval:   60,
			},
		},
	}
}

// LoadMember builds a MemberConfig. If path is non-empty it is read as
// YAML and environment variables are not consulted. If path is empty,
// defaults are overlaid with any NETRING_-prefixed environment variables
// found.
func LoadMember(path string) (MemberConfig, error) {
	cfg := DefaultMemberConfig()
	if path != "" {
		if err := loadYAMLInto(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err := applyEnv(&cfg, EnvPrefix); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadRegistry builds a RegistryConfig following the same file-or-env rule.
func LoadRegistry(path string) (RegistryConfig, error) {
	cfg := DefaultRegistryConfig()
	if path != "" {
		if err := loadYAMLInto(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err := applyEnv(&cfg, EnvPrefix); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadYAMLInto(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv walks a struct's fields (recursing into nested structs) and
// overwrites each with the value of <prefix><PATH_TO_FIELD> when that
// environment variable is set, using the field's yaml tag to build the
// path segment.
func applyEnv(v any, prefix string) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("applyEnv: need pointer to struct")
	}
	return applyEnvStruct(rv.Elem(), prefix)
}

func applyEnvStruct(rv reflect.Value, prefix string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("yaml")
		tag = strings.Split(tag, ",")[0]
		if tag == "" {
			tag = strings.ToLower(field.Name)
		}
		envKey := prefix + strings.ToUpper(tag)
		fv := rv.Field(i)

		switch fv.Kind() {
		case reflect.Struct:
			if err := applyEnvStruct(fv, envKey+"_"); err != nil {
				return err
			}
			continue
		case reflect.Slice:
			if raw, ok := os.LookupEnv(envKey); ok {
				fv.Set(reflect.ValueOf(strings.Split(raw, ",")))
			}
			continue
		}

		raw, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setScalar(fv, raw); err != nil {
			return fmt.Errorf("env %s: %w", envKey, err)
		}
	}
	return nil
}

func setScalar(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64, reflect.Float32:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	default:
		return fmt.Errorf("unsupported config field kind %s", fv.Kind())
	}
	return nil
}

// Duration converts a seconds value from config into a time.Duration.
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
