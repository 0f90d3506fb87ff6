// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/mcpanel/internal/logger"
	"github.com/woozymasta/mcpanel/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Target  Target        `group:"Target Options" env-namespace:"MCPANEL"`
	Query   Query         `group:"Query Options" namespace:"query" env-namespace:"MCPANEL_QUERY"`
	Journal Journal       `group:"Journal Options" namespace:"journal" env-namespace:"MCPANEL_JOURNAL"`
	Storage Storage       `group:"Storage Options" namespace:"db" env-namespace:"MCPANEL_DB"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MCPANEL_GEOIP"`
	Server  Server        `group:"API Server Options" namespace:"api" env-namespace:"MCPANEL_API"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MCPANEL_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Target holds one-shot query options. When Host is set the interactive menu is skipped.
type Target struct {
	// betteralign:ignore

	Host       string `short:"H" long:"host" env:"HOST" description:"Query this server once and exit"`
	Port       int    `short:"p" long:"port" env:"PORT" description:"Explicit server port (skips SRV lookup)"`
	Mode       string `short:"m" long:"mode" env:"MODE" description:"Query mode" choice:"status" choice:"query" default:"status"`
	JSON       bool   `long:"json" env:"JSON" description:"Print the one-shot result as JSON"`
	FakeServer string `long:"fake-server" hidden:"true"`
}

// Query holds Minecraft protocol client configuration.
type Query struct {
	// betteralign:ignore

	Timeout         time.Duration `long:"timeout" env:"TIMEOUT" description:"Status and query timeout" default:"5s"`
	DNSTimeout      time.Duration `long:"dns-timeout" env:"DNS_TIMEOUT" description:"SRV lookup timeout" default:"3s"`
	ProtocolVersion int32         `long:"protocol-version" env:"PROTOCOL_VERSION" description:"Protocol version sent in the status handshake" default:"47"`
	Rate            float64       `long:"rate" env:"RATE" description:"Max outbound queries per second (0 disables the limit)" default:"2"`
	Burst           int           `long:"burst" env:"BURST" description:"Outbound query burst" default:"1"`
}

// Journal holds the request journal configuration.
type Journal struct {
	// betteralign:ignore

	Path string `short:"j" long:"path" env:"PATH" description:"Append-only request log file (empty disables)" default:"requests.log"`
}

// Storage holds history database configuration.
type Storage struct {
	// betteralign:ignore

	Path     string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite history database" default:"mcpanel.db"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Do not record query history"`
	CheckAll bool          `long:"check-all" description:"Re-query every recorded endpoint, record the results and exit"`
	Prune    time.Duration `long:"prune" description:"Delete history older than the given duration and exit"`
	Workers  int           `long:"workers" env:"WORKERS" description:"Concurrent queries for --db-check-all" default:"10"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (empty disables country lookup)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Update   bool          `long:"update" env:"UPDATE" description:"Download the MMDB file when missing or outdated"`
}

// Server holds the HTTP API configuration.
type Server struct {
	// betteralign:ignore

	Serve          bool          `long:"serve" env:"SERVE" description:"Run the HTTP API instead of the interactive console"`
	Address        string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken      string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Token required for history endpoints"`
	AllowedHosts   []string      `long:"allowed-host" env:"ALLOWED_HOSTS" description:"Hosts the API may query (empty allows any)" env-delim:","`
	TrustProxy     bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Per-IP limit: requests count" default:"8"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Per-IP limit: window duration" default:"1m"`
}

// ErrVersion is returned by ParseArgs when only build info was requested.
var ErrVersion = errors.New("version requested")

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:], flags.Default)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		if errors.Is(err, ErrVersion) {
			vars.Print()
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cfg
}

// ParseArgs parses args with the given parser options and validates the result.
func ParseArgs(args []string, options flags.Options) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, options)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return nil, ErrVersion
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that flags tags cannot express.
func (c *Config) Validate() error {
	if c.Target.Port < 0 || c.Target.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Target.Port)
	}

	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	if c.Query.Rate < 0 {
		return fmt.Errorf("query rate must not be negative")
	}

	if c.Query.Burst < 1 {
		c.Query.Burst = 1
	}

	if c.Storage.Workers < 1 {
		c.Storage.Workers = 1
	}

	if c.Server.Serve && c.Server.AuthToken == "" {
		return fmt.Errorf(
			"required flag `-t, --api-auth-token' or environment variable `MCPANEL_API_AUTH_TOKEN` was not specified")
	}

	if (c.Storage.CheckAll || c.Storage.Prune > 0) && c.Storage.Disable {
		return fmt.Errorf("maintenance flags require the history database")
	}

	return nil
}
