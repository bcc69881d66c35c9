package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "SERVE"

var (
	ErrRootNotFound   = errors.New("root directory does not exist")
	ErrRootNotDir     = errors.New("root is not a directory")
	ErrInvalidPort    = errors.New("invalid port")
	ErrPortsCollision = errors.New("file server and metrics server ports must differ")
)

// Config holds the server configuration. It is not modified after startup.
type Config struct {
	Root            string        `envconfig:"ROOT"              default:"."`
	Port            int           `envconfig:"PORT"              default:"8060"`
	MetricsPort     int           `envconfig:"METRICS_PORT"      default:"8000"`
	NoBrowser       bool          `envconfig:"NO_BROWSER"        default:"false"`
	OpenPath        string        `envconfig:"OPEN_PATH"         default:""`
	GameMetrics     bool          `envconfig:"GAME_METRICS"      default:"false"`
	MaxConnections  int           `envconfig:"MAX_CONNECTIONS"   default:"0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"  default:"10s"`
	EventsPerMinute int           `envconfig:"EVENTS_PER_MINUTE" default:"60"`
	LogLevel        string        `envconfig:"LOG_LEVEL"         default:"INFO"`
	LogFormat       string        `envconfig:"LOG_FORMAT"        default:"text"`
}

// Load returns the defaults overridden by SERVE_* environment variables
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to read environment")
	}
	return cfg, nil
}

// Validate checks everything that can be checked without touching the network
func (c Config) Validate() error {
	if err := validatePort("port", c.Port); err != nil {
		return err
	}
	if err := validatePort("metrics port", c.MetricsPort); err != nil {
		return err
	}
	if c.Port != 0 && c.Port == c.MetricsPort {
		return errors.Wrapf(ErrPortsCollision, "both set to %d", c.Port)
	}
	if c.MaxConnections < 0 {
		return errors.Errorf("max connections must not be negative, got %d", c.MaxConnections)
	}
	if c.ShutdownTimeout < 0 {
		return errors.Errorf("shutdown timeout must not be negative, got %s", c.ShutdownTimeout)
	}
	return nil
}

// ResolveRoot returns the absolute path of Root, which must be an existing
// directory
func (c Config) ResolveRoot() (string, error) {
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve root %q", c.Root)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(ErrRootNotFound, abs)
		}
		return "", errors.Wrapf(err, "failed to stat root %s", abs)
	}
	if !info.IsDir() {
		return "", errors.Wrap(ErrRootNotDir, abs)
	}

	return abs, nil
}

// BrowserURL is the page opened once the file server listens on port
func (c Config) BrowserURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/%s", port, strings.TrimPrefix(c.OpenPath, "/"))
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return errors.Wrapf(ErrInvalidPort, "%s %d", name, port)
	}
	return nil
}
