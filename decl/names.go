// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package decl

import (
	"strings"
	"unicode"
)

// KeySuffix is appended to every generated key name.
const KeySuffix = "_KEY"

// KeyName returns the name of the key constant for the event called name:
// the words of name, upper-cased and joined by underscores, plus KeySuffix.
//
//	Damage      -> DAMAGE_KEY
//	PlayerJoin  -> PLAYER_JOIN_KEY
//	ServeHTTP   -> SERVE_HTTP_KEY
//	HTTPRequest -> HTTP_REQUEST_KEY
func KeyName(name string) string {
	return strings.ToUpper(strings.Join(words(name), "_")) + KeySuffix
}

// SnakeName returns name in lower snake case, for file names.
func SnakeName(name string) string {
	return strings.ToLower(strings.Join(words(name), "_"))
}

// LowerCamel returns name with its first word lower-cased, for unexported
// identifiers derived from an exported one ("HTTPRequest" -> "httpRequest").
func LowerCamel(name string) string {
	ws := words(name)
	if len(ws) == 0 {
		return ""
	}
	ws[0] = strings.ToLower(ws[0])
	return strings.Join(ws, "")
}

// words splits a mixed-case identifier at lower-to-upper transitions and
// at the last capital of an upper-case run followed by a lower-case letter.
// Underscores separate words and are dropped. Digits stay with the word
// before them.
func words(name string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' }) {
		rs := []rune(part)
		start := 0
		for i := 1; i < len(rs); i++ {
			if !unicode.IsUpper(rs[i]) {
				continue
			}
			prev := rs[i-1]
			switch {
			case unicode.IsLower(prev), unicode.IsDigit(prev):
			case unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
			default:
				continue
			}
			out = append(out, string(rs[start:i]))
			start = i
		}
		out = append(out, string(rs[start:]))
	}
	return out
}
