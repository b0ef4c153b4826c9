package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewQuietWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "telesyncd.log")
	logger, err := NewQuiet(path, "main")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("log file is empty")
	}
	var line map[string]any
	if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["msg"] != "hello" || line["session"] != "main" {
		t.Errorf("line = %v", line)
	}
	if _, ok := line["ts"]; !ok {
		t.Error("missing ts field")
	}
}
