// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package conf contains code to load and access evgen config file
// settings.
//
// A config file is HuJSON (evgen.hujson, evgen.json) or YAML (evgen.yaml,
// evgen.yml), for example:
//
//	{
//		"version": "v1alpha1",
//		"header": "// Copyright (c) Example Inc\n",
//		"package": "./events",
//		"keys": "./keys Combat", // directory and container
//	}
package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

const v1Alpha1 = "v1alpha1"

// FileNames are the config file names Find looks for, in order.
var FileNames = []string{"evgen.hujson", "evgen.json", "evgen.yaml", "evgen.yml"}

// Config describes a config file.
type Config struct {
	Path    string // file the config was loaded from, if any
	Raw     []byte // raw bytes, in HuJSON or YAML form
	Std     []byte // standardized JSON form
	Version string // "v1alpha1"

	// Parsed is the parsed config, converted from its raw bytes version to the
	// latest known format.
	Parsed ConfigV1Alpha1
}

// VersionedConfig allows specifying config at the root of the object, or in
// a versioned sub-object.
// e.g. {"version": "v1alpha1", "package": "./events"}
// or {"version": "v1beta1", "a-beta-config": "a-beta-value", "v1alpha1": {"package": "./events"}}
type VersionedConfig struct {
	Version string `json:",omitempty"` // "v1alpha1"

	// Latest version of the config.
	*ConfigV1Alpha1

	// Backwards compatibility version(s) of the config. Fields and sub-fields
	// from here should only be added to, never changed in place.
	V1Alpha1 *ConfigV1Alpha1 `json:",omitempty"`
}

type ConfigV1Alpha1 struct {
	Header      *string  `json:",omitempty"` // Written at the top of generated files.
	Package     *string  `json:",omitempty"` // Default package location, e.g. "./events".
	Keys        *string  `json:",omitempty"` // Default key location, e.g. "./keys Combat".
	Suffix      *string  `json:",omitempty"` // Generated file name suffix. Defaults to "_evgen.go".
	Parallelism *int     `json:",omitempty"` // Declarations synthesized at once. Defaults to GOMAXPROCS.
	Tags        []string `json:",omitempty"` // Build tags used when loading packages.
	LogLevel    *string  `json:",omitempty"` // "info", "debug" or "dev". Defaults to "info".
}

// Load parses raw. name is the file name it came from; a .yaml or .yml
// extension selects YAML, anything else HuJSON.
func Load(raw []byte, name string) (c Config, err error) {
	c.Path = name
	c.Raw = raw
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var v map[string]any
		if err := yaml.Unmarshal(c.Raw, &v); err != nil {
			return c, fmt.Errorf("error parsing config as YAML: %w", err)
		}
		if c.Std, err = json.Marshal(v); err != nil {
			return c, fmt.Errorf("error parsing config as YAML: %w", err)
		}
	default:
		c.Std, err = hujson.Standardize(c.Raw)
		if err != nil {
			return c, fmt.Errorf("error parsing config as HuJSON/JSON: %w", err)
		}
	}
	var ver VersionedConfig
	if err := json.Unmarshal(c.Std, &ver); err != nil {
		return c, fmt.Errorf("error parsing config: %w", err)
	}
	rootV1Alpha1 := (ver.Version == v1Alpha1)
	backCompatV1Alpha1 := (ver.V1Alpha1 != nil)
	switch {
	case ver.Version == "":
		return c, errors.New("error parsing config: no \"version\" field provided")
	case rootV1Alpha1 && backCompatV1Alpha1:
		// Exactly one of these should be set.
		return c, errors.New("error parsing config: both root and v1alpha1 config provided")
	case rootV1Alpha1 != backCompatV1Alpha1:
		c.Version = v1Alpha1
		switch {
		case rootV1Alpha1 && ver.ConfigV1Alpha1 != nil:
			c.Parsed = *ver.ConfigV1Alpha1
		case backCompatV1Alpha1:
			c.Parsed = *ver.V1Alpha1
		default:
			c.Parsed = ConfigV1Alpha1{}
		}
	default:
		return c, fmt.Errorf("error parsing config: unsupported \"version\" value %q; want \"%s\"", ver.Version, v1Alpha1)
	}

	if p := c.Parsed.Parallelism; p != nil && *p < 0 {
		return c, fmt.Errorf("error parsing config: negative parallelism %d", *p)
	}
	if l := c.Parsed.LogLevel; l != nil {
		switch *l {
		case "info", "debug", "dev":
		default:
			return c, fmt.Errorf("error parsing config: unknown log level %q", *l)
		}
	}
	return c, nil
}

// LoadFile reads and parses the config file at path on fs.
func LoadFile(fs afero.Fs, path string) (Config, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, err
	}
	c, err := Load(raw, path)
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Find returns the path of the config file governing dir: the first of
// FileNames present in dir or its closest ancestor that has one. It
// returns "" if there is none.
func Find(fs afero.Fs, dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			p := filepath.Join(dir, name)
			fi, err := fs.Stat(p)
			if err == nil && fi.Mode().IsRegular() {
				return p, nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) GetHeader() string {
	if c.Parsed.Header == nil {
		return ""
	}

	return *c.Parsed.Header
}

func (c *Config) GetPackage() string {
	if c.Parsed.Package == nil {
		return ""
	}

	return *c.Parsed.Package
}

func (c *Config) GetKeys() string {
	if c.Parsed.Keys == nil {
		return ""
	}

	return *c.Parsed.Keys
}

func (c *Config) GetSuffix() string {
	if c.Parsed.Suffix == nil {
		return "_evgen.go"
	}

	return *c.Parsed.Suffix
}

// GetParallelism returns the configured parallelism, or 0 for the
// default.
func (c *Config) GetParallelism() int {
	if c.Parsed.Parallelism == nil {
		return 0
	}

	return *c.Parsed.Parallelism
}

// GetTags returns the build tags in the comma-separated form of the
// -tags flag.
func (c *Config) GetTags() string {
	return strings.Join(c.Parsed.Tags, ",")
}

func (c *Config) GetLogLevel() string {
	if c.Parsed.LogLevel == nil {
		return "info"
	}

	return *c.Parsed.LogLevel
}
