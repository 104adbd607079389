package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/config"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
)

func cmdKeygen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Generate a new private key and print its address.

The key is printed base58 encoded unless -save is given, in which case it
becomes the wallet of the configuration. This command fails if -save is
given and a wallet is already configured.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = fl.String("config", configPath(),
			"Path to the configuration file. You can use QUORUM_CONFIG environment variable to set it.")
		saveFl = fl.Bool("save", false, "Store the key as the configured wallet.")
	)
	fl.Parse(args)

	key := crypto.GenPrivateKey()
	if !*saveFl {
		_, err := fmt.Fprintf(output, "%s\n%s\n", key, key.Address())
		return err
	}

	store, err := config.NewStore(*configFl)
	if err != nil {
		return err
	}
	c, err := store.File()
	if err != nil {
		return err
	}
	if c.PrivateKey != "" {
		// Never overwrite a wallet. User must reset it first to
		// ensure the key is not lost by an accident.
		return fmt.Errorf("a wallet is already configured in %q, reset it and try again", store.Path())
	}
	if _, err := store.SetWallet(key.String()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(output, key.Address())
	return err
}

func cmdKeyaddr(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Print out the address of a private key.

The key is read from stdin when -stdin is given, otherwise the configured
wallet is used.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = fl.String("config", configPath(),
			"Path to the configuration file. You can use QUORUM_CONFIG environment variable to set it.")
		stdinFl = fl.Bool("stdin", false, "Read the private key from stdin.")
	)
	fl.Parse(args)

	addr, err := keyAddress(input, *configFl, *stdinFl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(output, addr)
	return err
}

func keyAddress(input io.Reader, path string, fromInput bool) (quorum.Address, error) {
	var raw string
	if fromInput {
		b, err := ioutil.ReadAll(input)
		if err != nil {
			return nil, errors.Wrap(err, "read private key")
		}
		raw = strings.TrimSpace(string(b))
	} else {
		store, err := config.NewStore(path)
		if err != nil {
			return nil, err
		}
		c, err := store.Load()
		if err != nil {
			return nil, err
		}
		if c.PrivateKey == "" {
			return nil, errors.Wrap(errors.ErrNotFound, "no wallet configured")
		}
		raw = c.PrivateKey
	}
	key, err := crypto.ParsePrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return key.Address(), nil
}

func cmdVersion(in io.Reader, out io.Writer, args []string) error {
	fmt.Fprintln(out, quorum.Version())
	return nil
}
