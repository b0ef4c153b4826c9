package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "TELESYNC_HOME"

// BaseDir returns $TELESYNC_HOME, or ~/.telesync.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".telesync")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// SessionDBPath returns the whatsmeow device store path.
func SessionDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// AppDBPath returns the app-owned telesync.db path.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "telesync.db")
}

// CredentialsDir returns the encrypted credentials store directory.
func CredentialsDir(name string) string {
	return filepath.Join(Dir(name), "credentials")
}

// DatabaseDir is handed to the backend as its own database directory.
func DatabaseDir(name string) string {
	return filepath.Join(Dir(name), "td")
}

// FilesDir is where downloaded files land.
func FilesDir(name string) string {
	return filepath.Join(Dir(name), "files")
}

// QRPath returns where the login QR code image is written.
func QRPath(name string) string {
	return filepath.Join(Dir(name), "login-qr.png")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "telesyncd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
		FilesDir(name),
		DatabaseDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
