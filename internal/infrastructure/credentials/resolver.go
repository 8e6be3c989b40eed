package credentials

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"flight-alert-service/pkg/logger"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrNoCredentials is returned when no resolver produced database credentials
var ErrNoCredentials = errors.New("no database credentials configured")

// DBCredentials are the connection settings for the price database
type DBCredentials struct {
	DSN            string `yaml:"dsn"`
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	Port           int    `yaml:"port"`
	ConnectTimeout int    `yaml:"connect_timeout"`
	SSLMode        string `yaml:"sslmode"`

	// Source names the resolver that produced these credentials
	Source string `yaml:"-"`
}

// PostgresDSN renders the credentials as a PostgreSQL connection URL.
// An explicit DSN wins over the individual fields.
func (c *DBCredentials) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}
	timeout := c.ConnectTimeout
	if timeout == 0 {
		timeout = 10
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(timeout))
	u.RawQuery = q.Encode()

	return u.String()
}

func (c *DBCredentials) complete() bool {
	if c.DSN != "" {
		return true
	}
	return c.Host != "" && c.User != "" && c.Database != ""
}

// Resolver is one credential source. ok is false when the source has nothing to offer.
type Resolver interface {
	Name() string
	Resolve() (creds *DBCredentials, ok bool, err error)
}

// EnvResolver reads FLIGHT_DB_* environment variables
type EnvResolver struct {
	Prefix string
}

// Keys are PREFIX_FIELD. No envconfig tags here: a tagged field also falls
// back to the bare tag name, so USER would pick up the login name.
type envSpec struct {
	DSN            string
	Host           string
	User           string
	Password       string
	Name           string
	Port           int    `default:"5432"`
	ConnectTimeout int    `split_words:"true" default:"10"`
	SSLMode        string `default:"disable"`
}

func (r EnvResolver) Name() string { return "env" }

func (r EnvResolver) Resolve() (*DBCredentials, bool, error) {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "FLIGHT_DB"
	}

	var spec envSpec
	if err := envconfig.Process(prefix, &spec); err != nil {
		return nil, false, fmt.Errorf("read %s_* environment: %w", prefix, err)
	}

	creds := &DBCredentials{
		DSN:            spec.DSN,
		Host:           spec.Host,
		User:           spec.User,
		Password:       spec.Password,
		Database:       spec.Name,
		Port:           spec.Port,
		ConnectTimeout: spec.ConnectTimeout,
		SSLMode:        spec.SSLMode,
		Source:         r.Name(),
	}
	return creds, creds.complete(), nil
}

// FileResolver reads a YAML credentials file. A missing file is not an error.
type FileResolver struct {
	Path string
}

func (r FileResolver) Name() string { return "file" }

func (r FileResolver) Resolve() (*DBCredentials, bool, error) {
	if r.Path == "" {
		return nil, false, nil
	}

	data, err := os.ReadFile(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read credentials file %s: %w", r.Path, err)
	}

	var creds DBCredentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, false, fmt.Errorf("parse credentials file %s: %w", r.Path, err)
	}
	creds.Source = r.Name()
	return &creds, creds.complete(), nil
}

// DefaultResolver supplies local development credentials, only when Enabled
type DefaultResolver struct {
	Enabled bool
}

func (r DefaultResolver) Name() string { return "defaults" }

func (r DefaultResolver) Resolve() (*DBCredentials, bool, error) {
	if !r.Enabled {
		return nil, false, nil
	}
	return &DBCredentials{
		Host:           "localhost",
		User:           "flight",
		Database:       "flights",
		Port:           5432,
		ConnectTimeout: 10,
		SSLMode:        "disable",
		Source:         r.Name(),
	}, true, nil
}

// Chain tries resolvers in order and returns the first complete credentials
type Chain struct {
	resolvers []Resolver
	logger    logger.Logger
}

// NewChain creates a resolver chain
func NewChain(logger logger.Logger, resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers, logger: logger}
}

// NewDefaultChain builds the env, file, defaults chain
func NewDefaultChain(logger logger.Logger, credentialsFile string, allowDefaults bool) *Chain {
	return NewChain(logger,
		EnvResolver{},
		FileResolver{Path: credentialsFile},
		DefaultResolver{Enabled: allowDefaults},
	)
}

// Resolve returns the first complete credentials, or ErrNoCredentials.
// A resolver error stops the chain.
func (c *Chain) Resolve() (*DBCredentials, error) {
	for _, r := range c.resolvers {
		creds, ok, err := r.Resolve()
		if err != nil {
			c.logger.Error("Credential source failed", "source", r.Name(), "error", err)
			return nil, err
		}
		if !ok {
			c.logger.Debug("Credential source has no credentials", "source", r.Name())
			continue
		}

		if r.Name() == "defaults" {
			c.logger.Warn("Using built-in database defaults, not suitable for production",
				"host", creds.Host, "database", creds.Database)
		} else {
			c.logger.Info("Database credentials resolved", "source", r.Name())
		}
		return creds, nil
	}

	c.logger.Error("No database credentials found",
		"hint", "set FLIGHT_DB_HOST/USER/PASSWORD/NAME, FLIGHT_DB_DSN, or a credentials file")
	return nil, ErrNoCredentials
}
