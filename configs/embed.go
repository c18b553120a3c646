// Package configs provides embedded configuration templates for zeno.
//
// Templates are embedded at build time so every distribution (go install,
// release binaries) can write them without reading the source tree.
//
// Configuration hierarchy (see internal/config Load):
//  1. Defaults (internal/config NewConfig)
//  2. User config ($XDG_CONFIG_HOME/zeno/config.yaml)
//  3. Project config (.zeno.yaml)
//  4. .env in the working directory, then ZENO_* environment variables
package configs

import _ "embed"

// ProjectConfigTemplate is written to .zeno.yaml by `zeno init`. Every
// setting is commented out, so the file changes nothing until edited.
//
//go:embed zeno.example.yaml
var ProjectConfigTemplate string
