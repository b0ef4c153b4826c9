package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".telesync", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)
	if got, want := Dir("x"), filepath.Join(base, "sessions", "x"); got != want {
		t.Errorf("Dir(x) = %q, want %q", got, want)
	}
	if got, want := ConfigPath(), filepath.Join(base, "config.toml"); got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestSessionFiles(t *testing.T) {
	tests := []struct {
		name   string
		got    string
		suffix string
	}{
		{"socket", SocketPath("test"), filepath.Join("sessions", "test", "daemon.sock")},
		{"lock", LockPath("test"), filepath.Join("sessions", "test", "LOCK")},
		{"app db", AppDBPath("test"), filepath.Join("sessions", "test", "telesync.db")},
		{"credentials", CredentialsDir("test"), filepath.Join("sessions", "test", "credentials")},
		{"qr", QRPath("test"), filepath.Join("sessions", "test", "login-qr.png")},
		{"log", LogPath("test"), filepath.Join("sessions", "test", "logs", "telesyncd.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasSuffix(tt.got, tt.suffix) {
				t.Errorf("%q, want suffix %q", tt.got, tt.suffix)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{Dir("test"), LogDir("test"), FilesDir("test"), DatabaseDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0700 {
			t.Errorf("%s mode = %v", d, info.Mode())
		}
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	t.Setenv(NameEnv, "")

	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q", got)
	}
	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}
	if err := os.WriteFile(ConfigPath(), []byte("default_session = \"work\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() with config = %q, want work", got)
	}

	t.Setenv(NameEnv, "watch")
	if got := Resolve(""); got != "watch" {
		t.Errorf("Resolve() with env = %q, want watch", got)
	}
	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) with env = %q, want flag", got)
	}
}
