package config

import _ "embed"

// ExampleConfig is the starter config written by `gh-watch init`.
//
//go:embed config.example.toml
var ExampleConfig string
