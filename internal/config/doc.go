// Package config loads the service configuration from a YAML file, an
// optional .env file and environment variable overrides.
package config
