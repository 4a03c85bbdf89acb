// Package config loads and validates credkeeper server configuration files.
//
// A configuration file is YAML:
//
//	listen_on: "127.0.0.1:9992"
//	access_tokens:
//	  - sesame
//	services:
//	  db:
//	    lease_timeout_secs: 300
//	    credentials:
//	      - user: alice
//	        password: one
package config

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// DefaultLeaseTimeoutSecs is the lease expiry applied to services that do
// not set one.
const DefaultLeaseTimeoutSecs = 300

// Config is the on-disk configuration of a credkeeper server.
type Config struct {
	// ListenOn is the address the keeper listens on. Empty means the keeper
	// default.
	ListenOn string `yaml:"listen_on"`

	// WebPath is the URL prefix the keeper's routes mount under.
	WebPath string `yaml:"web_path"`

	// AccessTokens is the set of bearer tokens clients may present.
	AccessTokens []string `yaml:"access_tokens"`

	// LeaseStore is a boltdb file that persists leases across restarts.
	// Empty keeps pool state in memory only.
	LeaseStore string `yaml:"persistent_leases_filename"`

	// SSL enables TLS when both of its files are set.
	SSL SSL `yaml:"ssl"`

	// Services maps each service name to the credentials it leases out.
	Services map[string]Service `yaml:"services"`
}

// SSL points at the PEM files that enable TLS.
type SSL struct {
	PrivateKeyFile       string `yaml:"private_key_pem_file"`
	CertificateChainFile string `yaml:"certificate_chain_file"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to load config %s", path)
	}
	return cfg, nil
}

// Parse parses configuration data, applies defaults and validates the
// result. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "unable to parse config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WebPath == "" {
		c.WebPath = "/"
	}
	for name, svc := range c.Services {
		if svc.LeaseTimeoutSecs == 0 {
			svc.LeaseTimeoutSecs = DefaultLeaseTimeoutSecs
		}
		for i := range svc.Credentials {
			if svc.Credentials[i].NumConcurrent == 0 {
				svc.Credentials[i].NumConcurrent = 1
			}
		}
		c.Services[name] = svc
	}
}

// Validate reports the first problem that would keep a keeper from serving
// this configuration.
func (c Config) Validate() error {
	if len(c.AccessTokens) == 0 {
		return errors.New("config declares no access_tokens")
	}
	for _, token := range c.AccessTokens {
		if token == "" {
			return errors.New("config declares an empty access token")
		}
	}
	if (c.SSL.PrivateKeyFile == "") != (c.SSL.CertificateChainFile == "") {
		return errors.New("ssl requires both private_key_pem_file and certificate_chain_file")
	}
	if len(c.Services) == 0 {
		return errors.New("config declares no services")
	}
	for name, svc := range c.Services {
		if name == "" {
			return errors.New("config declares a service with an empty name")
		}
		if err := svc.Validate(); err != nil {
			return errors.Wrapf(err, "service %q", name)
		}
	}
	return nil
}
