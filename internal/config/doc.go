// Package config loads, merges, and validates the mediacat configuration.
//
// Configuration lives in a YAML file (config/config.yaml by default). An
// optional secrets.yaml next to it may override credential fields; a secret
// wins only when it is present and non-empty. All paths are expanded and
// absolutized during load, and value ranges are validated before the
// configuration is handed to any component.
package config
