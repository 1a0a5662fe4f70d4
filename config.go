package dnspipe

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"
)

// SourceConfig is the configuration stanza for one named address source.
// Which fields apply depends on the source type;
// each constructor validates the fields it needs.
type SourceConfig struct {
	Type string `yaml:"type"`
	// Iface names the network interface for interface sources.
	// Empty means all interfaces.
	Iface string `yaml:"iface"`
	// URLs are the lookup services for web sources.
	URLs []string `yaml:"urls"`
	// Addresses is the fixed list for static sources.
	Addresses []string `yaml:"addresses"`
	// MinInterval rate-limits web sources:
	// results are reused for this long before the services are asked again.
	MinInterval time.Duration `yaml:"min_interval"`
}

// UpdaterConfig is the configuration stanza for one named updater.
type UpdaterConfig struct {
	Type          string   `yaml:"type"`
	Hostname      string   `yaml:"hostname"`
	Token         string   `yaml:"token"`
	TokenFile     string   `yaml:"token_file"`
	CreateRecords bool     `yaml:"create_records"`
	Subscriptions []string `yaml:"subscriptions"`
}

type Config struct {
	Debug         bool                     `yaml:"debug"`
	CheckInterval time.Duration            `yaml:"check_interval"`
	Sources       map[string]SourceConfig  `yaml:"sources"`
	Updaters      map[string]UpdaterConfig `yaml:"updaters"`
}

// LoadConfig reads configuration from the given paths in order,
// later files overriding earlier ones, on top of the built-in defaults.
func LoadConfig(paths ...string) (*Config, error) {
	out := &Config{
		CheckInterval: 5 * time.Minute,
	}

	for _, cfgPath := range paths {
		err := func() error {
			f, err := os.Open(cfgPath)
			if err != nil {
				return fmt.Errorf("unable to open config file: %w", err)
			}
			defer func() { _ = f.Close() }()

			if err := yaml.NewDecoder(f).Decode(out); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return nil
		}()
		if err != nil {
			return nil, fmt.Errorf("unable to load config %q: %w", cfgPath, err)
		}
	}

	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// validate reports every problem it finds at once,
// so the operator fixes the file in one pass instead of one error per run.
// Hostnames are normalized to their ASCII (punycode) form here,
// which is the form every later comparison and API call uses.
func (c *Config) validate() error {
	var mErr *multierror.Error

	if c.CheckInterval <= 0 {
		mErr = multierror.Append(mErr, userErrorf("check_interval must be positive"))
	}
	for name, sc := range c.Sources {
		if sc.Type == "" {
			mErr = multierror.Append(mErr, userErrorf("source %q is missing a type", name))
		}
	}
	for name, uc := range c.Updaters {
		if uc.Type == "" {
			mErr = multierror.Append(mErr, userErrorf("updater %q is missing a type", name))
		}
		if uc.Hostname == "" {
			mErr = multierror.Append(mErr, userErrorf("updater %q is missing a hostname", name))
			continue
		}
		ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(uc.Hostname, "."))
		if err != nil {
			mErr = multierror.Append(mErr, userErrorf("updater %q: hostname %q is not a valid domain name: %v", name, uc.Hostname, err))
			continue
		}
		if !strings.Contains(ascii, ".") {
			mErr = multierror.Append(mErr, userErrorf("updater %q: hostname %q must have at least one dot", name, uc.Hostname))
			continue
		}
		uc.Hostname = ascii
		c.Updaters[name] = uc
	}
	return mErr.ErrorOrNil()
}

// APIToken returns the updater's API token,
// either inline from the config or read from the first line of token_file.
func (c UpdaterConfig) APIToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	if c.TokenFile == "" {
		return "", userErrorf("no token or token_file configured")
	}
	if err := verifyTokenFilePermissions(c.TokenFile); err != nil {
		return "", err
	}
	f, err := os.Open(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("error reading token: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	token, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return string(token), nil
}

func verifyTokenFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking token file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return userErrorf("invalid permissions for %q: expected file permissions \"-rw-------\"; found %q", path, fs.FileMode(perms))
	}
	return nil
}
