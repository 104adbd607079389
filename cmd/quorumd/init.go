package main

import (
	"encoding/json"
	"flag"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/x/bank"
	"github.com/tendermint/tendermint/libs/log"
)

const flagTmHome = "tmhome"

// GenesisDoc involves some tendermint-specific structures we don't
// want to parse, so we just grab it into a raw object format,
// so we can set the application state.
type GenesisDoc map[string]json.RawMessage

// initCmd funds the accounts given as address=amount arguments in the
// genesis file created by tendermint init. Other application state found in
// the file is kept.
func initCmd(logger log.Logger, args []string) error {
	fl := flag.NewFlagSet("init", flag.ContinueOnError)
	tmHome := fl.String(flagTmHome, filepath.Join(os.ExpandEnv("$HOME"), ".tendermint"), "tendermint home directory")
	if err := fl.Parse(args); err != nil {
		return err
	}

	accounts, err := parseAccounts(fl.Args())
	if err != nil {
		return err
	}
	genFile := filepath.Join(*tmHome, "config", "genesis.json")
	if err := addGenesisAccounts(genFile, accounts); err != nil {
		return err
	}
	logger.Info("Updated genesis file", "path", genFile, "accounts", len(accounts))
	return nil
}

// parseAccounts reads address=amount pairs. An address listed twice is
// credited the sum of its amounts.
func parseAccounts(args []string) ([]bank.GenesisAccount, error) {
	var (
		accounts []bank.GenesisAccount
		index    = make(map[string]int)
	)
	for _, arg := range args {
		chunks := strings.SplitN(arg, "=", 2)
		if len(chunks) != 2 {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "account %q is not address=amount", arg)
		}
		addr, err := quorum.ParseAddress(chunks[0])
		if err != nil {
			return nil, errors.Wrapf(err, "account %q", arg)
		}
		amount, err := strconv.ParseUint(chunks[1], 10, 64)
		if err != nil || amount == 0 {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "account %q amount", arg)
		}
		if i, ok := index[addr.String()]; ok {
			accounts[i].Coins[0].Amount += amount
			continue
		}
		index[addr.String()] = len(accounts)
		accounts = append(accounts, bank.GenesisAccount{
			Address: addr,
			Coins:   []bank.Coin{{Amount: amount}},
		})
	}
	return accounts, nil
}

func addGenesisAccounts(filename string, accounts []bank.GenesisAccount) error {
	bz, err := ioutil.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "read genesis, run tendermint init first")
	}
	var doc GenesisDoc
	if err := json.Unmarshal(bz, &doc); err != nil {
		return errors.Wrap(err, "parse genesis")
	}

	state := make(quorum.Options)
	if raw := doc["app_state"]; len(raw) != 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &state); err != nil {
			return errors.Wrap(err, "parse app_state")
		}
	}
	if state[bank.OptKey], err = json.Marshal(accounts); err != nil {
		return err
	}
	if doc["app_state"], err = json.Marshal(state); err != nil {
		return err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, out, 0600)
}
