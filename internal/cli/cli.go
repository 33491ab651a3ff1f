// Package cli parses the qsar command line.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Commands lists the subcommands in pipeline order.
var Commands = []string{"filter", "prepare", "explore", "train", "predict", "serve", "run"}

// ExitError carries the process exit code for a failed invocation.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Options is the parsed invocation.
type Options struct {
	Command    string
	ConfigPath string
	LogLevel   string
	LogFormat  string
	// Model restricts train, predict and serve to one configured model.
	Model string
	// Output receives the filtered table for filter; empty means stdout.
	Output string
	// Addr overrides server.addr for serve.
	Addr string
	// SMILES are the structures given as arguments to predict.
	SMILES []string
}

// Parse processes args (without the program name). It returns nil Options
// and no error when usage was printed and the program should exit cleanly.
func Parse(args []string, output io.Writer) (*Options, error) {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(output)
		return nil, nil
	}
	cmd := args[0]
	if !known(cmd) {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q (want one of %s)", cmd, strings.Join(Commands, ", "))}
	}

	fs := flag.NewFlagSet("qsar "+cmd, flag.ContinueOnError)
	fs.SetOutput(output)
	opts := &Options{Command: cmd}
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to the workflow HCL file. Built-in defaults when empty.")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to the workflow HCL file (shorthand).")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Override log.level: debug, info, warn or error.")
	fs.StringVar(&opts.LogFormat, "log-format", "", "Override log.format: console or json.")
	switch cmd {
	case "filter":
		fs.StringVar(&opts.Output, "o", "", "Write the filtered table here instead of stdout.")
	case "train", "predict", "serve":
		fs.StringVar(&opts.Model, "model", "", "Name of the configured model. The first one when empty.")
	}
	if cmd == "serve" {
		fs.StringVar(&opts.Addr, "addr", "", "Listen address. Overrides server.addr.")
	}

	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, nil
		}
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	if cmd == "predict" {
		opts.SMILES = fs.Args()
	} else if fs.NArg() > 0 {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("%s takes no arguments, got %q", cmd, fs.Args())}
	}
	return opts, nil
}

func known(cmd string) bool {
	for _, c := range Commands {
		if c == cmd {
			return true
		}
	}
	return false
}

func usage(w io.Writer) {
	fmt.Fprint(w, `
qsar - QSAR model building workflow.

Usage:
  qsar <command> [options]

Commands:
  filter    Load the input table and keep one target and quality tier
  prepare   Standardize, split, featurize and save the dataset
  explore   Summarize the prepared dataset
  train     Optimize, evaluate and fit the configured models
  predict   Predict SMILES given as arguments (or predict.smiles)
  serve     Serve a fitted model over HTTP
  run       Run filter through predict in one go

Run 'qsar <command> -h' for the options of a command.
`)
}
