// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The evgen command generates typed multicast event dispatch code from
// interfaces marked with //evgen:events.
//
// Typical use is a go:generate line in the declaring package:
//
//	//go:generate go run github.com/tailscale/evgen/cmd/evgen generate
//
// See package github.com/tailscale/evgen/scan for the directives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	e := &env{
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		newLogger: newLogger,
	}
	if err := e.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "evgen: %v\n", err)
		os.Exit(1)
	}
}

// env is what commands run against. Tests substitute all of it.
type env struct {
	fs        afero.Fs
	stdout    io.Writer
	newLogger func(level string) (*zap.SugaredLogger, error)
}

// newLogger returns a logger for level "info", "debug" or "dev".
func newLogger(level string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch level {
	case "info", "":
		cfg = zap.NewProductionConfig()
	case "debug":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "dev":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if isatty.IsTerminal(os.Stderr.Fd()) {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// commonArgs are the flags every pipeline command takes.
type commonArgs struct {
	dir      string
	tags     string
	config   string
	logLevel string
}

func (a *commonArgs) register(fs *flag.FlagSet) {
	fs.StringVar(&a.dir, "dir", ".", "directory to resolve package patterns in")
	fs.StringVar(&a.tags, "tags", "", "comma-separated build tags to load packages with (default from config)")
	fs.StringVar(&a.config, "config", "", "config file (default: evgen.{hujson,json,yaml,yml} in -dir or a parent)")
	fs.StringVar(&a.logLevel, "log-level", "", `"info", "debug" or "dev" (default from config, else "info")`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// envOptions make every flag settable as EVGEN_<FLAG>.
var envOptions = []ff.Option{ff.WithEnvVarPrefix("EVGEN")}

func (e *env) rootCmd() *ffcli.Command {
	root := &ffcli.Command{
		Name:       "evgen",
		ShortUsage: "evgen <subcommand> [flags] [packages]",
		ShortHelp:  "Generate typed multicast event dispatch code.",
		LongHelp: strings.TrimSpace(`
evgen reads interfaces marked //evgen:events in the named packages (default
".") and writes, for every method, an event interface, its view interface, a
factory for adapted, aggregated and deferred handlers, and a key in a key
container.

For help on subcommands, add --help after: "evgen generate --help".
`),
		Subcommands: []*ffcli.Command{
			e.generateCmd(),
			e.checkCmd(),
			e.watchCmd(),
			e.versionCmd(),
		},
		FlagSet:   newFlagSet("evgen"),
		Exec:      func(context.Context, []string) error { return flag.ErrHelp },
		UsageFunc: usageFunc,
	}
	for _, c := range root.Subcommands {
		if c.UsageFunc == nil {
			c.UsageFunc = usageFunc
		}
	}
	return root
}

// run runs the CLI. The args do not include the binary name.
func (e *env) run(ctx context.Context, args []string) error {
	root := e.rootCmd()
	err := root.ParseAndRun(ctx, args)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(e.stdout, usageFunc(selected(root, args)))
		return nil
	}
	return err
}

// selected returns the subcommand of root named in args, or root.
func selected(root *ffcli.Command, args []string) *ffcli.Command {
	for _, a := range args {
		for _, c := range root.Subcommands {
			if c.Name == a {
				return c
			}
		}
	}
	return root
}

func usageFunc(c *ffcli.Command) string {
	var b strings.Builder

	fmt.Fprintf(&b, "USAGE\n")
	if c.ShortUsage != "" {
		fmt.Fprintf(&b, "  %s\n", c.ShortUsage)
	} else {
		fmt.Fprintf(&b, "  %s\n", c.Name)
	}
	fmt.Fprintf(&b, "\n")

	if c.LongHelp != "" {
		fmt.Fprintf(&b, "%s\n\n", c.LongHelp)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(&b, "SUBCOMMANDS\n")
		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		for _, subcommand := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", subcommand.Name, subcommand.ShortHelp)
		}
		tw.Flush()
		fmt.Fprintf(&b, "\n")
	}

	var hasFlags bool
	c.FlagSet.VisitAll(func(*flag.Flag) { hasFlags = true })
	if hasFlags {
		fmt.Fprintf(&b, "FLAGS\n")
		tw := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
		c.FlagSet.VisitAll(func(f *flag.Flag) {
			name, usage := flag.UnquoteUsage(f)
			s := fmt.Sprintf("  --%s", f.Name)
			if len(name) > 0 {
				s += " " + name
			}
			s += "\n    \t" + strings.ReplaceAll(usage, "\n", "\n    \t")
			if f.DefValue != "" {
				s += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			fmt.Fprintln(tw, s)
		})
		tw.Flush()
	}
	return b.String()
}
