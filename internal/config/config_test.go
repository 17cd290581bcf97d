package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// ============================================================================
// 加载与保存
// ============================================================================

func TestDefault(t *testing.T) {
	c := Default()
	if c.ClassFile.Major != jvmgen.ClassMajorVersion {
		t.Errorf("Expected major %d, got %d", jvmgen.ClassMajorVersion, c.ClassFile.Major)
	}
	if !c.Assembler.Strict {
		t.Errorf("Expected strict ordering by default")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	c := Default()
	c.ClassFile.Major = 50
	c.Assembler.Workers = 3
	c.Assembler.Strict = false
	c.Log.Level = "debug"
	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *c {
		t.Errorf("Expected %+v, got %+v", *c, *loaded)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("[assembler]\nworkers = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Assembler.Workers != 2 {
		t.Errorf("Expected workers 2, got %d", c.Assembler.Workers)
	}
	if c.ClassFile.Major != jvmgen.ClassMajorVersion || !c.Assembler.Strict || c.Log.Level != "info" {
		t.Errorf("Expected defaults for missing fields, got %+v", *c)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[assembler\nworkers = 2\n"},
		{"negative workers", "[assembler]\nworkers = -1\n"},
		{"old major", "[classfile]\nmajor = 12\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ConfigFileName)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Expected error for %q", tt.content)
			}
		})
	}
}

// ============================================================================
// 查找
// ============================================================================

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(nested); got != "" {
		// 临时目录之上恰好有配置文件时无法断言
		t.Skipf("found unrelated config %s", got)
	}

	if err := Default().Save(filepath.Join(root, ConfigFileName)); err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.Abs(filepath.Join(root, ConfigFileName))
	if got := FindConfigFile(nested); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	c, err := LoadOrDefault(nested)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if c.ClassFile.Major != jvmgen.ClassMajorVersion {
		t.Errorf("Expected loaded config, got %+v", *c)
	}
}

func TestLogger(t *testing.T) {
	c := Default()
	c.Log.Level = "warn"
	logger, err := c.Logger()
	if err != nil {
		t.Fatalf("Logger failed: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Errorf("Expected debug disabled at warn level")
	}
}

func TestWorkerCount(t *testing.T) {
	c := Default()
	c.Assembler.Workers = 0
	if c.WorkerCount() < 1 {
		t.Errorf("Expected at least one worker, got %d", c.WorkerCount())
	}
	c.Assembler.Workers = 4
	if c.WorkerCount() != 4 {
		t.Errorf("Expected 4 workers, got %d", c.WorkerCount())
	}
}
