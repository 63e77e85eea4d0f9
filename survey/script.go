package survey

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is the operator-editable surface of the survey: invitation
// text, button label, and the conversation system prompt. Zero fields
// fall back to the compiled-in defaults.
type Script struct {
	Welcome      string `yaml:"welcome"`
	ButtonLabel  string `yaml:"button_label"`
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultScript returns the built-in script.
func DefaultScript() Script {
	return Script{
		Welcome:      defaultWelcome,
		ButtonLabel:  defaultButtonLabel,
		SystemPrompt: defaultSystemPrompt,
	}
}

// LoadScript reads a YAML script file and fills missing fields from the
// defaults. An empty path returns the defaults directly.
func LoadScript(path string) (Script, error) {
	script := DefaultScript()
	if path == "" {
		return script, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	var loaded Script
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if loaded.Welcome != "" {
		script.Welcome = loaded.Welcome
	}
	if loaded.ButtonLabel != "" {
		script.ButtonLabel = loaded.ButtonLabel
	}
	if loaded.SystemPrompt != "" {
		script.SystemPrompt = loaded.SystemPrompt
	}
	return script, nil
}
