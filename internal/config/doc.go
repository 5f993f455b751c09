// Package config loads sockd's configuration from a file, SOCKD_*
// environment variables and command line flags.
package config
