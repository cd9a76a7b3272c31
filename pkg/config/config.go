// Package config loads the agent's configuration file.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// DefaultPath is where the agent looks for its configuration file.
const DefaultPath = "/etc/nodeagent/config.toml"

// Config is the complete agent configuration.
type Config struct {
	RegistrationURL string `toml:"registration_url" validate:"required,url"`
	OpenIDURL       string `toml:"openid_url" validate:"required,url"`
	NodeName        string `toml:"node_name"`

	LogLevel    string `toml:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat   string `toml:"log_format" validate:"oneof=text json"`
	LogLocation string `toml:"log_location"`

	HTTPTimeout    string `toml:"http_timeout" validate:"duration"`
	JSONAttributes string `toml:"json_attributes"`

	SecretStore SecretStore `toml:"secret_store"`
	Engine      Engine      `toml:"engine"`
	Facts       Facts       `toml:"facts"`
	Run         Run         `toml:"run"`
}

type SecretStore struct {
	Backend     string `toml:"backend" validate:"oneof=file badger"`
	Path        string `toml:"path" validate:"required"`
	AgeIdentity string `toml:"age_identity"`
}

type Engine struct {
	Command string   `toml:"command" validate:"required_without=Noop"`
	Args    []string `toml:"args"`
	Noop    bool     `toml:"noop"`
}

type Facts struct {
	Hostnamed   bool              `toml:"hostnamed"`
	EC2         bool              `toml:"ec2"`
	EC2Endpoint string            `toml:"ec2_endpoint" validate:"omitempty,url"`
	Static      map[string]string `toml:"static"`
	// CacheTTL keeps hostnamed and ec2 facts between runs when set.
	CacheTTL string `toml:"cache_ttl" validate:"omitempty,duration"`
}

type Run struct {
	Once            bool   `toml:"once"`
	Interval        string `toml:"interval" validate:"duration"`
	Splay           string `toml:"splay" validate:"duration"`
	MetricsTextfile string `toml:"metrics_textfile"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		RegistrationURL: "http://localhost:4000",
		OpenIDURL:       "http://localhost:4001",
		LogLevel:        "info",
		LogFormat:       "text",
		HTTPTimeout:     "60s",
		SecretStore: SecretStore{
			Backend: "file",
			Path:    "/var/lib/nodeagent/secrets",
		},
		Engine: Engine{
			Command: "/usr/libexec/nodeagent/converge",
		},
		Run: Run{
			Once:     true,
			Interval: "30m",
			Splay:    "0s",
		},
	}
}

// Load reads path over the defaults. A missing file at the default path is
// not an error; a missing file given explicitly is.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && path == DefaultPath:
		return cfg, nil
	case err != nil:
		return nil, errors.Wrap(err, "unable to read configuration")
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "unable to parse configuration %s", path)
	}
	return cfg, nil
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	// Repeated runs need a pause between them.
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		run := sl.Current().Interface().(Run)
		if !run.Once && run.IntervalDuration() <= 0 {
			sl.ReportError(run.Interval, "Interval", "Interval", "positive_interval", "")
		}
	}, Run{})
	return v
}()

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Errorf("invalid configuration: %s fails %q (got %q)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// Timeout is the parsed HTTPTimeout.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.HTTPTimeout)
	return d
}

// CacheDuration is the parsed CacheTTL, zero when unset.
func (f Facts) CacheDuration() time.Duration {
	d, _ := time.ParseDuration(f.CacheTTL)
	return d
}

// IntervalDuration is the parsed Run.Interval.
func (r Run) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(r.Interval)
	return d
}

// SplayDuration is the parsed Run.Splay.
func (r Run) SplayDuration() time.Duration {
	d, _ := time.ParseDuration(r.Splay)
	return d
}
