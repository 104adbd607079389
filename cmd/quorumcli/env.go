package main

import (
	"os"

	"github.com/iov-one/quorum/config"
)

// env returns the value of an environment variable if provided (even if empty)
// or a fallback value.
func env(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

// configPath is the default of the -config flag.
func configPath() string {
	return env("QUORUM_CONFIG", config.DefaultPath)
}
