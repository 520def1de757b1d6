// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every field has a default, so an empty file (or no file at all) yields a
// client pointed at a backend on localhost:8080 with the journal and the
// MQTT mirror disabled.
package config
