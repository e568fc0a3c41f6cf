// Package config holds the application configuration for sitemap-to-csv.
//
// Values are layered: built-in defaults from NewConfig, then an optional YAML
// file, then command-line flags. Validate is called once before any network
// activity.
package config
