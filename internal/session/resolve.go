package session

import (
	"os"

	"github.com/matheus3301/telesync/internal/config"
)

// DefaultName is used when nothing else names a session.
const DefaultName = "main"

// NameEnv selects the session when no flag is given.
const NameEnv = "TELESYNC_SESSION"

// Resolve picks the session name: the flag, then $TELESYNC_SESSION, then
// default_session from the config file, then DefaultName.
func Resolve(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if name := os.Getenv(NameEnv); name != "" {
		return name
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultName
}
