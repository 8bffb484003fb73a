// Experiment configuration loader (YAML or TOML) with CUE validation
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"demandexp/internal/scenario"
)

// ErrInvalid is wrapped by every semantic validation failure.
var ErrInvalid = errors.New("invalid experiment config")

// Host is an emulated end host.
type Host struct {
	Name string `yaml:"name" toml:"name"`
	IP   string `yaml:"ip" toml:"ip"`
}

// Topology describes the two-host, one-switch emulated network.
type Topology struct {
	Prefix        string  `yaml:"prefix" toml:"prefix"`
	Switch        string  `yaml:"switch" toml:"switch"`
	BandwidthMbps float64 `yaml:"bandwidth_mbps" toml:"bandwidth_mbps"`
	NetmaskBits   int     `yaml:"netmask_bits" toml:"netmask_bits"`
	Hosts         []Host  `yaml:"hosts" toml:"hosts"`
}

// Traffic configures the traffic generator and the trial loop.
type Traffic struct {
	Tool     string   `yaml:"tool" toml:"tool"`
	Port     int      `yaml:"port" toml:"port"`
	Duration Duration `yaml:"duration" toml:"duration"`
	Trials   int      `yaml:"trials" toml:"trials"`
	Receiver string   `yaml:"receiver" toml:"receiver"`
	Sender   string   `yaml:"sender" toml:"sender"`
}

// ExperimentConfig is the root configuration.
type ExperimentConfig struct {
	OutputDir string              `yaml:"output_dir" toml:"output_dir"`
	Seed      int64               `yaml:"seed" toml:"seed"`
	Topology  Topology            `yaml:"topology" toml:"topology"`
	Traffic   Traffic             `yaml:"traffic" toml:"traffic"`
	Scenarios []scenario.Scenario `yaml:"scenarios" toml:"scenarios"`
	// ScenariosFile names a YAML scenario list, relative to the config file.
	// It is mutually exclusive with Scenarios.
	ScenariosFile string `yaml:"scenarios_file" toml:"scenarios_file"`
}

// Duration wraps time.Duration so it can be written as "2s" in YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration of the reference experiment.
func Default() *ExperimentConfig {
	cfg := &ExperimentConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero field with the reference value.
func (c *ExperimentConfig) ApplyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "experiment_results"
	}
	t := &c.Topology
	if t.Prefix == "" {
		t.Prefix = "dx"
	}
	if t.Switch == "" {
		t.Switch = "s1"
	}
	if t.BandwidthMbps == 0 {
		t.BandwidthMbps = 100
	}
	if t.NetmaskBits == 0 {
		t.NetmaskBits = 8
	}
	if len(t.Hosts) == 0 {
		t.Hosts = []Host{{Name: "h1", IP: "10.0.0.1"}, {Name: "h2", IP: "10.0.0.2"}}
	}
	tr := &c.Traffic
	if tr.Tool == "" {
		tr.Tool = "iperf"
	}
	if tr.Port == 0 {
		tr.Port = 5001
	}
	if tr.Duration.Duration == 0 {
		tr.Duration.Duration = 2 * time.Second
	}
	if tr.Trials == 0 {
		tr.Trials = 10
	}
	if tr.Receiver == "" {
		tr.Receiver = t.Hosts[0].Name
	}
	if tr.Sender == "" && len(t.Hosts) > 1 {
		tr.Sender = t.Hosts[1].Name
	}
	if len(c.Scenarios) == 0 {
		c.Scenarios = scenario.BuiltIn()
	}
}

// Validate checks the invariants the runner relies on.
func (c *ExperimentConfig) Validate() error {
	t := c.Topology
	if len(t.Hosts) != 2 {
		return fmt.Errorf("%w: topology needs exactly 2 hosts, got %d", ErrInvalid, len(t.Hosts))
	}
	if t.BandwidthMbps <= 0 {
		return fmt.Errorf("%w: bandwidth must be positive", ErrInvalid)
	}
	if t.NetmaskBits < 1 || t.NetmaskBits > 30 {
		return fmt.Errorf("%w: netmask_bits %d out of range", ErrInvalid, t.NetmaskBits)
	}
	seen := map[string]bool{}
	for _, h := range t.Hosts {
		if h.Name == "" || seen[h.Name] {
			return fmt.Errorf("%w: host names must be unique and non-empty", ErrInvalid)
		}
		seen[h.Name] = true
		if ip := net.ParseIP(h.IP); ip == nil || ip.To4() == nil {
			return fmt.Errorf("%w: host %s has invalid IPv4 address %q", ErrInvalid, h.Name, h.IP)
		}
	}
	if t.Hosts[0].IP == t.Hosts[1].IP {
		return fmt.Errorf("%w: hosts share address %s", ErrInvalid, t.Hosts[0].IP)
	}
	// veth names are <prefix>-<node>-ethN and must fit IFNAMSIZ.
	for _, n := range []string{t.Switch, t.Hosts[0].Name, t.Hosts[1].Name} {
		if len(t.Prefix)+len(n)+7 > 15 {
			return fmt.Errorf("%w: interface name for %s-%s too long", ErrInvalid, t.Prefix, n)
		}
	}
	tr := c.Traffic
	if tr.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive", ErrInvalid)
	}
	if tr.Duration.Duration < time.Second {
		return fmt.Errorf("%w: duration must be at least 1s", ErrInvalid)
	}
	// the traffic tool takes its run time in whole seconds
	if tr.Duration.Duration%time.Second != 0 {
		return fmt.Errorf("%w: duration %s is not a whole number of seconds", ErrInvalid, tr.Duration.Duration)
	}
	if tr.Port <= 0 || tr.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, tr.Port)
	}
	if tr.Tool != "iperf" && tr.Tool != "iperf3" {
		return fmt.Errorf("%w: unsupported tool %q", ErrInvalid, tr.Tool)
	}
	if !seen[tr.Receiver] || !seen[tr.Sender] || tr.Receiver == tr.Sender {
		return fmt.Errorf("%w: receiver and sender must be two distinct topology hosts", ErrInvalid)
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("%w: no scenarios", ErrInvalid)
	}
	names := map[string]bool{}
	for _, s := range c.Scenarios {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if names[s.Name] {
			return fmt.Errorf("%w: duplicate scenario %s", ErrInvalid, s.Name)
		}
		names[s.Name] = true
	}
	return nil
}

// Host returns the host with the given name.
func (c *ExperimentConfig) Host(name string) (Host, bool) {
	for _, h := range c.Topology.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return Host{}, false
}

// Load reads a YAML or TOML config, validates it against a CUE schema and applies defaults.
// An empty cueSchemaPath selects the embedded schema.
func Load(configPath, cueSchemaPath string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	format := formatOf(configPath)
	if err := ValidateWithCue(data, format, cueSchemaPath); err != nil {
		return nil, err
	}

	var cfg ExperimentConfig
	switch format {
	case formatTOML:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("cannot decode TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cannot decode YAML config: %w", err)
		}
	}
	if err := cfg.loadScenariosFile(filepath.Dir(configPath)); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("loaded configuration", "path", configPath, "scenarios", len(cfg.Scenarios), "trials", cfg.Traffic.Trials)
	return &cfg, nil
}

func (c *ExperimentConfig) loadScenariosFile(baseDir string) error {
	if c.ScenariosFile == "" {
		return nil
	}
	if len(c.Scenarios) > 0 {
		return fmt.Errorf("%w: set either scenarios or scenarios_file, not both", ErrInvalid)
	}
	path := c.ScenariosFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.Scenarios = sc
	return nil
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatOf(path string) format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return formatTOML
	}
	return formatYAML
}
