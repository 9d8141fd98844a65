package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soundmirror.yaml")
	content := `speech:
  priority: [estimate]
playback:
  enabled: false
database:
  path: ` + dbPath + `
  history: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_ClosesDatabaseOnExit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	cfgPath := writeTestConfig(t, dbPath)

	if code := run([]string{"-config", cfgPath, "speak", "one", "two"}); code != 0 {
		t.Fatalf("speak exit code = %d, want 0", code)
	}
	if code := run([]string{"-config", cfgPath, "history", "5"}); code != 0 {
		t.Fatalf("history exit code = %d, want 0", code)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("数据库文件应已创建: %v", err)
	}
	// 最后一个连接正常关闭时 SQLite 会合并并删除 WAL 文件
	if _, err := os.Stat(dbPath + "-wal"); !os.IsNotExist(err) {
		t.Errorf("WAL 文件仍然存在，数据库没有关闭: %v", err)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	cfgPath := writeTestConfig(t, filepath.Join(t.TempDir(), "history.db"))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", []string{"-config", cfgPath}, 1},
		{"unknown command", []string{"-config", cfgPath, "nope"}, 1},
		{"speak without text", []string{"-config", cfgPath, "speak"}, 1},
		{"bad history limit", []string{"-config", cfgPath, "history", "x"}, 1},
		{"invalid rate", []string{"-config", cfgPath, "speak", "-rate", "0", "hi"}, 1},
		{"time", []string{"-config", cfgPath, "time"}, 0},
		{"voices", []string{"-config", cfgPath, "voices", "english"}, 0},
	}
	for _, tt := range tests {
		if got := run(tt.args); got != tt.want {
			t.Errorf("%s: exit code = %d, want %d", tt.name, got, tt.want)
		}
	}
}
