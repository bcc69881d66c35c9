package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is applied when no profile is named
const DefaultProfile = "browser"

var ErrUnknownProfile = errors.New("unknown profile")

// Profile is a named set of overrides. Nil fields leave the Config untouched.
type Profile struct {
	Root            *string   `toml:"root"              yaml:"root"`
	Port            *int      `toml:"port"              yaml:"port"`
	MetricsPort     *int      `toml:"metrics_port"      yaml:"metrics_port"`
	NoBrowser       *bool     `toml:"no_browser"        yaml:"no_browser"`
	OpenPath        *string   `toml:"open_path"         yaml:"open_path"`
	GameMetrics     *bool     `toml:"game_metrics"      yaml:"game_metrics"`
	MaxConnections  *int      `toml:"max_connections"   yaml:"max_connections"`
	ShutdownTimeout *Duration `toml:"shutdown_timeout"  yaml:"shutdown_timeout"`
	EventsPerMinute *int      `toml:"events_per_minute" yaml:"events_per_minute"`
}

// ProfileFile is the on-disk layout of a --config file
type ProfileFile struct {
	Profiles map[string]Profile `toml:"profiles" yaml:"profiles"`
}

// Duration decodes "1m30s" style strings from TOML and YAML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func ptr[T any](v T) *T { return &v }

// builtinProfiles mirror the three ways the server has been deployed: a
// developer serving a directory and looking at it, a container serving it
// headless, and the game build that also reports play statistics.
var builtinProfiles = map[string]Profile{
	"browser":  {},
	"headless": {NoBrowser: ptr(true)},
	"game":     {GameMetrics: ptr(true), OpenPath: ptr("index.html")},
}

// LoadProfileFile reads a TOML or YAML profile file, chosen by extension
func LoadProfileFile(path string) (*ProfileFile, error) {
	var pf ProfileFile

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &pf); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
	default:
		return nil, errors.Errorf("unsupported profile file extension %q", ext)
	}

	return &pf, nil
}

// LookupProfile finds name in pf first, then among the built-in profiles.
// pf may be nil.
func LookupProfile(pf *ProfileFile, name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	if pf != nil {
		if p, ok := pf.Profiles[name]; ok {
			return p, nil
		}
	}
	if p, ok := builtinProfiles[name]; ok {
		return p, nil
	}
	return Profile{}, errors.Wrapf(ErrUnknownProfile, "%q (available: %s)", name, strings.Join(ProfileNames(pf), ", "))
}

// ProfileNames lists every profile name that LookupProfile accepts
func ProfileNames(pf *ProfileFile) []string {
	seen := make(map[string]struct{})
	for name := range builtinProfiles {
		seen[name] = struct{}{}
	}
	if pf != nil {
		for name := range pf.Profiles {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns cfg with every field set in p overridden
func (p Profile) Apply(cfg Config) Config {
	if p.Root != nil {
		cfg.Root = *p.Root
	}
	if p.Port != nil {
		cfg.Port = *p.Port
	}
	if p.MetricsPort != nil {
		cfg.MetricsPort = *p.MetricsPort
	}
	if p.NoBrowser != nil {
		cfg.NoBrowser = *p.NoBrowser
	}
	if p.OpenPath != nil {
		cfg.OpenPath = *p.OpenPath
	}
	if p.GameMetrics != nil {
		cfg.GameMetrics = *p.GameMetrics
	}
	if p.MaxConnections != nil {
		cfg.MaxConnections = *p.MaxConnections
	}
	if p.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = p.ShutdownTimeout.Duration
	}
	if p.EventsPerMinute != nil {
		cfg.EventsPerMinute = *p.EventsPerMinute
	}
	return cfg
}
