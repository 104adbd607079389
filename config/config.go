/*
Package config persists the local state of the command line clients: the
ledger RPC endpoint, the private key of the wallet and the active multisig.

The state is kept in a TOML file, by default ~/.config/quorum/config.toml.
Every value can be overridden for a single invocation with a QUORUM_*
environment variable, for example QUORUM_RPC_URL. Overrides are never
written back to the file.
*/
package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
)

const (
	// DefaultPath is where the configuration is stored unless told otherwise.
	DefaultPath = "~/.config/quorum/config.toml"

	// DefaultRPCURL points to a ledger node running on this host.
	DefaultRPCURL = "http://localhost:26657"

	// EnvPrefix prefixes the names of the environment overrides.
	EnvPrefix = "quorum"
)

// Config is the persisted client state.
type Config struct {
	RPCURL         string `toml:"rpc_url" envconfig:"RPC_URL"`
	PrivateKey     string `toml:"private_key" envconfig:"PRIVATE_KEY"`
	ActiveMultisig string `toml:"active_multisig" envconfig:"ACTIVE_MULTISIG"`
}

// DefaultConfig returns the configuration used when nothing was stored yet.
func DefaultConfig() Config {
	return Config{RPCURL: DefaultRPCURL}
}

// Redacted returns a copy safe to display. The private key is replaced by
// the address it signs for.
func (c Config) Redacted() Config {
	if c.PrivateKey == "" {
		return c
	}
	if key, err := crypto.ParsePrivateKey(c.PrivateKey); err == nil {
		c.PrivateKey = "<" + key.Address().String() + ">"
	} else {
		c.PrivateKey = "<invalid>"
	}
	return c
}

// Validate returns an error for each value that cannot be used.
func (c Config) Validate() error {
	var err error
	if c.RPCURL == "" {
		err = errors.Append(err, errors.Field("RPCURL", errors.ErrInvalidInput, "required"))
	}
	if c.PrivateKey != "" {
		if _, e := crypto.ParsePrivateKey(c.PrivateKey); e != nil {
			err = errors.Append(err, errors.Wrap(e, "PrivateKey"))
		}
	}
	if c.ActiveMultisig != "" {
		if _, e := quorum.ParseAddress(c.ActiveMultisig); e != nil {
			err = errors.Append(err, errors.Wrap(e, "ActiveMultisig"))
		}
	}
	return err
}

// Store reads and writes the configuration file at a single path.
type Store struct {
	path string
}

// NewStore returns a store for the file at given path. A leading ~ is
// expanded to the home directory of the user. An empty path selects
// DefaultPath.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "config path %q: %s", path, err)
	}
	return &Store{path: expanded}, nil
}

// Path returns the location of the configuration file.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored configuration with environment overrides
// applied. A missing file yields the defaults.
func (s *Store) Load() (Config, error) {
	c, err := s.File()
	if err != nil {
		return c, err
	}
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return c, errors.Wrapf(errors.ErrInvalidInput, "environment: %s", err)
	}
	return c, nil
}

// File returns the configuration as stored, ignoring the environment.
func (s *Store) File() (Config, error) {
	raw, err := ioutil.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return DefaultConfig(), nil
	case err != nil:
		return Config{}, errors.Wrapf(errors.ErrHuman, "read config: %s", err)
	}
	return FromReader(bytes.NewReader(raw), DefaultConfig())
}

// FromReader decodes a TOML configuration. Values missing from the input
// keep their value from def.
func FromReader(r io.Reader, def Config) (Config, error) {
	c := def
	if _, err := toml.DecodeReader(r, &c); err != nil {
		return def, errors.Wrapf(errors.ErrInvalidInput, "decode config: %s", err)
	}
	return c, nil
}

// Save validates and writes the configuration. The file is readable by
// its owner only since it may hold a private key.
func (s *Store) Save(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrapf(errors.ErrHuman, "create config directory: %s", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Wrapf(errors.ErrHuman, "encode config: %s", err)
	}
	if err := ioutil.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return errors.Wrapf(errors.ErrHuman, "write config: %s", err)
	}
	return nil
}

// Reset removes the stored configuration, so that defaults apply again.
func (s *Store) Reset() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrHuman, "remove config: %s", err)
	}
	return nil
}

// SetConnection stores the RPC endpoint of the ledger node.
func (s *Store) SetConnection(rpcURL string) (Config, error) {
	return s.update(func(c *Config) error {
		if rpcURL == "" {
			return errors.Wrap(errors.ErrInvalidInput, "empty rpc url")
		}
		c.RPCURL = rpcURL
		return nil
	})
}

// SetWallet stores the private key used to sign. It is accepted in any
// format crypto.ParsePrivateKey understands and stored base58 encoded.
func (s *Store) SetWallet(privateKey string) (Config, error) {
	return s.update(func(c *Config) error {
		key, err := crypto.ParsePrivateKey(privateKey)
		if err != nil {
			return err
		}
		c.PrivateKey = key.String()
		return nil
	})
}

// SetActiveMultisig stores the address of the multisig clients work on.
func (s *Store) SetActiveMultisig(addr quorum.Address) (Config, error) {
	return s.update(func(c *Config) error {
		if err := addr.Validate(); err != nil {
			return errors.Wrap(err, "multisig")
		}
		c.ActiveMultisig = addr.String()
		return nil
	})
}

func (s *Store) update(fn func(*Config) error) (Config, error) {
	c, err := s.File()
	if err != nil {
		return c, err
	}
	if err := fn(&c); err != nil {
		return c, err
	}
	if err := s.Save(c); err != nil {
		return c, err
	}
	return c, nil
}

// Resolve builds the client context described by the configuration,
// connecting to the ledger over Tendermint RPC.
func Resolve(c Config) (client.Context, error) {
	conn := client.NewHTTPConnection(c.RPCURL)
	return ResolveWith(c, client.NewTendermintLedger(conn, app.MakeCodec()))
}

// ResolveWith builds the client context described by the configuration
// for given ledger.
func ResolveWith(c Config, l client.Ledger) (client.Context, error) {
	if err := c.Validate(); err != nil {
		return client.Context{}, err
	}
	if c.PrivateKey == "" {
		return client.Context{}, errors.Wrap(errors.ErrInvalidInput, "no wallet configured")
	}
	key, err := crypto.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return client.Context{}, err
	}
	ctx := client.Context{Ledger: l, Signer: key}
	if c.ActiveMultisig != "" {
		if ctx.Multisig, err = quorum.ParseAddress(c.ActiveMultisig); err != nil {
			return client.Context{}, err
		}
	}
	if err := ctx.Validate(); err != nil {
		return client.Context{}, err
	}
	return ctx, nil
}
