// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"

	"github.com/peterbourgon/ff/v3/ffcli"
	evgenroot "github.com/tailscale/evgen"
)

func (e *env) versionCmd() *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "evgen version",
		ShortHelp:  "Print the evgen version",
		FlagSet:    newFlagSet("version"),
		Exec: func(context.Context, []string) error {
			fmt.Fprintln(e.stdout, evgenroot.Version())
			return nil
		},
	}
}
