package main

import (
	"flag"

	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/store/iavl"
	"github.com/tendermint/tendermint/abci/server"
	abci "github.com/tendermint/tendermint/abci/types"
	cmn "github.com/tendermint/tendermint/libs/common"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	flagBind     = "bind"
	flagDebug    = "debug"
	flagLogLevel = "log_level"

	// dbName is the name of the leveldb directory created under home.
	dbName = "quorum"
)

type startOptions struct {
	bind     string
	debug    bool
	logLevel string
}

func parseStartFlags(args []string) (startOptions, error) {
	var opts startOptions
	fl := flag.NewFlagSet("start", flag.ContinueOnError)
	fl.StringVar(&opts.bind, flagBind, "tcp://localhost:26658", "address server listens on")
	fl.BoolVar(&opts.debug, flagDebug, false, "call stack returned on error")
	fl.StringVar(&opts.logLevel, flagLogLevel, "info", "one of debug, info, error or none")
	err := fl.Parse(args)
	return opts, err
}

// newApp opens the application state stored under home.
func newApp(home string, logger log.Logger, debug bool) (abci.Application, error) {
	store, err := iavl.NewCommitStore(home, dbName)
	if err != nil {
		return nil, errors.Wrapf(err, "open state in %s", home)
	}
	return app.NewApplication(store, logger, debug), nil
}

func startCmd(logger log.Logger, home string, args []string) error {
	opts, err := parseStartFlags(args)
	if err != nil {
		return err
	}
	lvl, err := log.AllowLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger = log.NewFilter(logger, lvl)

	application, err := newApp(home, logger, opts.debug)
	if err != nil {
		return err
	}

	logger.Info("Starting ABCI app", "bind", opts.bind, "home", home)

	svr, err := server.NewServer(opts.bind, "socket", application)
	if err != nil {
		return errors.Wrap(err, "create listener")
	}
	svr.SetLogger(logger.With("module", "abci-server"))
	if err := svr.Start(); err != nil {
		return errors.Wrap(err, "start abci server")
	}

	cmn.TrapSignal(logger, func() {
		svr.Stop()
	})
	// Wait forever
	select {}
}
