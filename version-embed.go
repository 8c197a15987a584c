// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package evgenroot embeds VERSION.txt into the binary.
package evgenroot

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

// VersionDotTxt is the contents of VERSION.txt. A binary installed from a
// tagged module version reports that version instead; see Version.
//
//go:embed VERSION.txt
var VersionDotTxt string

// Version returns the evgen version: the module version recorded in the
// build info when evgen was installed from a tagged version, either as the
// main module or as a dependency, else VERSION.txt.
func Version() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v, ok := moduleVersion(bi); ok {
			return v
		}
	}
	return strings.TrimSpace(VersionDotTxt)
}

const modulePath = "github.com/tailscale/evgen"

func moduleVersion(bi *debug.BuildInfo) (string, bool) {
	mods := append([]*debug.Module{&bi.Main}, bi.Deps...)
	for _, m := range mods {
		if m == nil || m.Path != modulePath {
			continue
		}
		if m.Replace != nil {
			m = m.Replace
		}
		if m.Version != "" && m.Version != "(devel)" {
			return m.Version, true
		}
	}
	return "", false
}
