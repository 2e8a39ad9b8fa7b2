// Package config loads the optional engine-devenv.json file.
//
// The file is JSONC (JSON with comments and trailing commas), parsed with
// github.com/tidwall/jsonc before encoding/json. Every key is optional; a
// key that is present overrides the built-in default, and a command-line
// flag overrides the file.
package config
