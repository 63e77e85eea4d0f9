package survey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadScriptEmptyPathReturnsDefaults(t *testing.T) {
	script, err := LoadScript("")
	if err != nil {
		t.Fatalf("LoadScript() error = %v", err)
	}
	if script.SystemPrompt == "" || script.ButtonLabel == "" || script.Welcome == "" {
		t.Fatalf("defaults incomplete: %+v", script)
	}
}

func TestLoadScriptOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	data := "button_label: \"Count me in\"\nsystem_prompt: |\n  Custom survey prompt.\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	script, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript() error = %v", err)
	}
	if script.ButtonLabel != "Count me in" {
		t.Fatalf("ButtonLabel = %q", script.ButtonLabel)
	}
	if !strings.Contains(script.SystemPrompt, "Custom survey prompt.") {
		t.Fatalf("SystemPrompt = %q", script.SystemPrompt)
	}
	if script.Welcome != defaultWelcome {
		t.Fatalf("Welcome should fall back to the default")
	}
}

func TestLoadScriptMissingFile(t *testing.T) {
	if _, err := LoadScript(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("LoadScript(absent) error = nil, want error")
	}
}
