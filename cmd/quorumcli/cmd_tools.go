package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/config"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/tendermint/tendermint/libs/log"
)

func cmdTools(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
List all tools with their description and a template of their arguments.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = fl.String("config", configPath(),
			"Path to the configuration file. You can use QUORUM_CONFIG environment variable to set it.")
	)
	fl.Parse(args)

	srv, err := newServer(*configFl)
	if err != nil {
		return err
	}
	for _, t := range srv.Tools() {
		template, err := json.Marshal(t.Args())
		if err != nil {
			return errors.Wrapf(err, "template of %s", t.Name)
		}
		if _, err := fmt.Fprintf(output, "%s\n\t%s\n\t%s\n", t.Name, t.Description, template); err != nil {
			return err
		}
	}
	return nil
}

func cmdCall(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Call a tool and print its result as JSON.

Usage: call [<flags>] <TOOL> [<json arguments>]

Arguments are read from stdin when not given and stdin is not a terminal.
Tool names are case insensitive and dashes can be used instead of
underscores.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = fl.String("config", configPath(),
			"Path to the configuration file. You can use QUORUM_CONFIG environment variable to set it.")
		budgetFl = fl.Duration("budget", client.DefaultBudget,
			"Time given to the ledger to record a broadcast transaction.")
		debugFl   = fl.Bool("debug", false, "Print the full error, including internal ones.")
		verboseFl = fl.Bool("verbose", false, "Log broadcast attempts to stderr.")
		metricsFl = fl.Bool("metrics", false, "Print broadcast metrics to stderr after the call.")
	)
	fl.Parse(args)

	if fl.NArg() == 0 || fl.NArg() > 2 {
		fl.Usage()
		os.Exit(2)
	}
	name := toolName(fl.Arg(0))

	var params json.RawMessage
	if fl.NArg() == 2 {
		params = json.RawMessage(fl.Arg(1))
	} else if !isTerminal(input) {
		raw, err := ioutil.ReadAll(input)
		if err != nil {
			return errors.Wrap(err, "read arguments")
		}
		params = json.RawMessage(strings.TrimSpace(string(raw)))
	}

	logger := log.NewNopLogger()
	if *verboseFl {
		logger = log.NewTMLogger(log.NewSyncWriter(os.Stderr)).With("module", "quorumcli")
	}
	reg := prometheus.NewRegistry()
	srv, err := newServer(*configFl,
		tools.WithLogger(logger),
		tools.WithDebug(*debugFl),
		tools.WithBroadcasterOptions(
			client.WithBudget(*budgetFl),
			client.WithLogger(logger),
			client.WithRegisterer(reg),
		),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *budgetFl+30*time.Second)
	defer cancel()
	res := srv.Call(ctx, name, params)

	if *metricsFl {
		if err := printMetrics(os.Stderr, reg); err != nil {
			return err
		}
	}

	pretty, err := json.MarshalIndent(res, "", "\t")
	if err != nil {
		return errors.Wrap(err, "serialize result")
	}
	if _, err := fmt.Fprintln(output, string(pretty)); err != nil {
		return err
	}
	if res.Failed() {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func newServer(path string, opts ...tools.Option) (*tools.Server, error) {
	store, err := config.NewStore(path)
	if err != nil {
		return nil, err
	}
	return tools.NewServer(store, opts...)
}

// toolName normalizes a tool name given on the command line.
func toolName(s string) string {
	return strings.ToUpper(strings.Replace(s, "-", "_", -1))
}

// isTerminal returns true if r is a character device, for example stdin
// of an interactive shell.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
