// Package config handles configuration loading for picohost-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Fields left unset take the defaults listed in this package, so an empty file
// is a valid configuration.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PICOHOST_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/picohost/gateway.yaml
//  3. ~/.config/picohost/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	agent:
//	  api_key: "${ANTHROPIC_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	gateway:
//	  request_timeout: "120s"
//
// # Fixed Limits
//
// The maximum message length ([MaxMessageLength]) is not configurable.
package config
