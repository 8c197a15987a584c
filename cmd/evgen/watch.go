// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailscale/evgen/gen"
)

func (e *env) watchCmd() *ffcli.Command {
	var args struct {
		commonArgs
		debounce time.Duration
	}
	fs := newFlagSet("watch")
	args.register(fs)
	fs.DurationVar(&args.debounce, "debounce", 300*time.Millisecond, "how long to wait for changes to settle before regenerating")
	return &ffcli.Command{
		Name:       "watch",
		ShortUsage: "evgen watch [flags] [packages]",
		ShortHelp:  "Regenerate whenever the named packages change",
		LongHelp: strings.TrimSpace(`
watch generates once, then watches the directories of the named packages and
regenerates after Go source files change. Generated files and tests do not
trigger a run. Errors are logged and watching continues.
`),
		FlagSet: fs,
		Options: envOptions,
		Exec: func(ctx context.Context, patterns []string) error {
			return e.watch(ctx, &args.commonArgs, patterns, args.debounce)
		},
	}
}

// triggers reports whether ev should cause a regeneration. suffix is the
// generated file suffix.
func triggers(ev fsnotify.Event, suffix string) bool {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, suffix) || strings.HasSuffix(name, "_test.go") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

func (e *env) watch(ctx context.Context, a *commonArgs, patterns []string, debounce time.Duration) error {
	s, err := e.open(a)
	if err != nil {
		return err
	}
	defer s.log.Sync()
	log := s.log

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	watched := map[string]bool{}
	watchDirs := func(dirs []string) {
		for _, d := range dirs {
			if watched[d] {
				continue
			}
			if err := w.Add(d); err != nil {
				log.Errorf("watching %s: %v", d, err)
				continue
			}
			watched[d] = true
			log.Debugf("watching %s", d)
		}
	}

	regen := func() {
		files, res, err := s.files(ctx, patterns)
		if res != nil {
			watchDirs(res.Dirs)
		}
		if err != nil {
			log.Errorf("%v", e.debugFormatError(log, err))
			return
		}
		if err := gen.WriteFiles(e.fs, files); err != nil {
			log.Errorf("%v", err)
			return
		}
		log.Infof("generated %d files for %d events", len(files), len(res.Decls))
	}

	regen()
	if len(watched) == 0 {
		dir, err := filepath.Abs(a.dir)
		if err != nil {
			return err
		}
		watchDirs([]string{dir})
	}

	suffix := s.cfg.GetSuffix()
	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if triggers(ev, suffix) {
				log.Debugf("%s: %s", ev.Op, ev.Name)
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch: %v", err)
		case <-timer.C:
			regen()
		}
	}
}
