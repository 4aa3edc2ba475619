package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by the commands.
const (
	EnvDB        = "FLOW_REPORT_DB"
	EnvConfig    = "FLOW_REPORT_CONFIG"
	EnvArtifacts = "FLOW_REPORT_ARTIFACTS"
	EnvListen    = "FLOW_REPORT_LISTEN"
)

// LoadEnv loads variables from the given .env files (default ".env") into
// the process environment without overriding variables already set. A
// missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetEnv returns the value of key, or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
