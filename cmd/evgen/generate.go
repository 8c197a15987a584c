// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/scanner"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/spf13/afero"
	"github.com/tailscale/evgen/conf"
	"github.com/tailscale/evgen/decl"
	"github.com/tailscale/evgen/gen"
	"github.com/tailscale/evgen/scan"
	"github.com/tailscale/evgen/util/codegen"
	"go.uber.org/zap"
)

func (e *env) generateCmd() *ffcli.Command {
	var args struct {
		commonArgs
		dryRun  bool
		verbose bool
	}
	fs := newFlagSet("generate")
	args.register(fs)
	fs.BoolVar(&args.dryRun, "dry-run", false, "list the files that would be written without writing them")
	fs.BoolVar(&args.verbose, "v", false, "print the path of every file written")
	return &ffcli.Command{
		Name:       "generate",
		ShortUsage: "evgen generate [flags] [packages]",
		ShortHelp:  "Generate event code for the named packages",
		FlagSet:    fs,
		Options:    envOptions,
		Exec: func(ctx context.Context, patterns []string) error {
			return e.generate(ctx, &args.commonArgs, patterns, args.dryRun, args.verbose)
		},
	}
}

func (e *env) checkCmd() *ffcli.Command {
	var args struct {
		commonArgs
		diff bool
	}
	fs := newFlagSet("check")
	args.register(fs)
	fs.BoolVar(&args.diff, "diff", false, "print a line diff for every out of date file")
	return &ffcli.Command{
		Name:       "check",
		ShortUsage: "evgen check [flags] [packages]",
		ShortHelp:  "Report declarations and fail if generated files are stale",
		LongHelp: strings.TrimSpace(`
check runs the whole pipeline without writing anything. It prints every
declared event with the files it ends up in, and fails if any generated file
on disk is missing or differs from what generate would write.
`),
		FlagSet: fs,
		Options: envOptions,
		Exec: func(ctx context.Context, patterns []string) error {
			return e.check(ctx, &args.commonArgs, patterns, args.diff)
		},
	}
}

// session is one configured pipeline run.
type session struct {
	cfg  conf.Config
	log  *zap.SugaredLogger
	args *commonArgs
}

// open loads the config and builds the logger for a.
func (e *env) open(a *commonArgs) (*session, error) {
	var cfg conf.Config
	path := a.config
	if path == "" {
		var err error
		if path, err = conf.Find(e.fs, a.dir); err != nil {
			return nil, err
		}
	}
	if path != "" {
		var err error
		if cfg, err = conf.LoadFile(e.fs, path); err != nil {
			return nil, err
		}
	}
	level := a.logLevel
	if level == "" {
		level = cfg.GetLogLevel()
	}
	log, err := e.newLogger(level)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Debugf("using config %s", path)
	}
	return &session{cfg: cfg, log: log, args: a}, nil
}

// files runs the pipeline on patterns and returns the files to write.
func (s *session) files(ctx context.Context, patterns []string) ([]gen.File, *scan.Result, error) {
	tags := s.args.tags
	if tags == "" {
		tags = s.cfg.GetTags()
	}
	roots, deps, err := scan.Load(s.args.dir, tags, patterns...)
	if err != nil {
		return nil, nil, err
	}
	sc := &scan.Scanner{
		DefaultPackage: s.cfg.GetPackage(),
		DefaultKeys:    s.cfg.GetKeys(),
		Log:            s.log,
	}
	res, err := sc.Scan(roots, deps)
	if err != nil {
		return nil, nil, err
	}
	g := &gen.Generator{
		Oracle:      res.Oracle,
		License:     s.cfg.GetHeader(),
		Suffix:      s.cfg.GetSuffix(),
		Parallelism: s.cfg.GetParallelism(),
		Log:         s.log,
	}
	files, err := g.Generate(ctx, res.Decls)
	if err != nil {
		return nil, res, err
	}
	return files, res, nil
}

func (e *env) generate(ctx context.Context, a *commonArgs, patterns []string, dryRun, verbose bool) error {
	s, err := e.open(a)
	if err != nil {
		return err
	}
	defer s.log.Sync()
	files, res, err := s.files(ctx, patterns)
	if err != nil {
		return e.debugFormatError(s.log, err)
	}
	if dryRun {
		for _, f := range files {
			fmt.Fprintln(e.stdout, f.Path)
		}
		return nil
	}
	if err := gen.WriteFiles(e.fs, files); err != nil {
		return err
	}
	if verbose {
		for _, f := range files {
			fmt.Fprintf(e.stdout, "wrote %s\n", f.Path)
		}
	}
	s.log.Infof("generated %d files for %d events", len(files), len(res.Decls))
	return nil
}

// debugFormatError writes the unformatted code of a FormatError to a
// temporary file, so that the error can be read next to the code. Nothing
// is written to the output path. Other errors are returned unchanged.
func (e *env) debugFormatError(log *zap.SugaredLogger, err error) error {
	var fe *gen.FormatError
	if !errors.As(err, &fe) {
		return err
	}
	f, terr := afero.TempFile(e.fs, "", "evgen-*-"+filepath.Base(fe.Path))
	if terr != nil {
		log.Debugf("saving unformatted %s: %v", fe.Path, terr)
		return fmt.Errorf("generated code does not format: %w", err)
	}
	debug := f.Name()
	f.Close()
	var syntax scanner.ErrorList
	if werr := codegen.WriteFormatted(e.fs, fe.Source, debug); werr != nil && !errors.As(werr, &syntax) {
		log.Debugf("writing unformatted %s: %v", debug, werr)
	}
	return fmt.Errorf("generated code for %s does not format, see %s: %w", fe.Path, debug, err)
}

func (e *env) check(ctx context.Context, a *commonArgs, patterns []string, diff bool) error {
	s, err := e.open(a)
	if err != nil {
		return err
	}
	defer s.log.Sync()
	files, res, err := s.files(ctx, patterns)
	if err != nil {
		return err
	}

	// Event files come first, in declaration order.
	for i, d := range res.Decls {
		fmt.Fprintf(e.stdout, "%s.%s\t%s\t%s.%s()\n", d.Package.Path, d.Name, relPath(a.dir, files[i].Path), d.Keys, decl.KeyName(d.Name))
	}

	var stale []string
	for _, f := range files {
		onDisk, err := readFile(e.fs, f.Path)
		if err != nil {
			return err
		}
		if !bytes.Equal(onDisk, f.Source) {
			rel := relPath(a.dir, f.Path)
			stale = append(stale, rel)
			if diff {
				fmt.Fprint(e.stdout, fileDiff(rel, onDisk, f.Source))
			}
		}
	}
	if len(stale) > 0 {
		return fmt.Errorf("%d generated files are out of date: %s", len(stale), strings.Join(stale, ", "))
	}
	s.log.Infof("%d events, %d files up to date", len(res.Decls), len(files))
	return nil
}

// readFile returns the contents of path, or nil if it does not exist.
func readFile(fs afero.Fs, path string) ([]byte, error) {
	b, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func relPath(dir, path string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(abs, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
