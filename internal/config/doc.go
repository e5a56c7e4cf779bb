// Package config loads and validates the r2rpack TOML configuration.
//
// Configuration is fixed at deployment: data roots, the large-dataset
// allow-list, OpenVDM lookup endpoint, mail relay, and log settings. Load
// resolves the file location, applies defaults, expands ~ paths, and
// validates the result so the rest of the program can treat the value as
// trusted input.
package config
