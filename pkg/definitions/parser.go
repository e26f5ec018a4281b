// Package definitions reconciles externally-declared automation definition
// files with the registry.
package definitions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vaultpilot/automations/pkg/models"
)

// Suffix marks files holding automation definitions.
const Suffix = ".automation.md"

// SourceFormat identifies the definition file format in provenance fields.
const SourceFormat = "markdown-frontmatter"

// Definition is the parsed front matter of a definition file. The body text
// below the front matter is free-form documentation and is ignored.
type Definition struct {
	Name         string       `yaml:"name"         validate:"required"`
	Description  string       `yaml:"description"`
	Triggers     []TriggerDef `yaml:"triggers"     validate:"required,min=1,dive"`
	Actions      []ActionDef  `yaml:"actions"      validate:"required,min=1,dive"`
	Enabled      *bool        `yaml:"enabled"`
	RunOnInstall bool         `yaml:"runOnInstall"`
}

type TriggerDef struct {
	Type     string `yaml:"type" validate:"required"`
	Schedule string `yaml:"schedule"`
	Delay    int64  `yaml:"delay"`
	Pattern  string `yaml:"pattern"`
	Tag      string `yaml:"tag"`
}

type ActionDef struct {
	Type     string         `yaml:"type" validate:"required"`
	AgentID  string         `yaml:"agentId"`
	PromptID string         `yaml:"promptId"`
	SkillID  string         `yaml:"skillId"`
	Path     string         `yaml:"path"`
	Template string         `yaml:"template"`
	Command  string         `yaml:"command"`
	Input    map[string]any `yaml:"input"`
}

// DeriveID derives the stable automation id from the file path. Renaming a
// file therefore changes identity and is treated as delete-then-recreate.
func DeriveID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))

	return "def-" + hex.EncodeToString(sum[:])[:12]
}

// IsDefinitionFile reports whether the path names a definition file.
func IsDefinitionFile(path string) bool {
	return strings.HasSuffix(path, Suffix)
}

// ParseFile reads and validates a definition file.
func ParseFile(validate *validator.Validate, path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %s: %w", path, err)
	}

	return Parse(validate, data)
}

// Parse extracts the front-matter block and decodes it.
func Parse(validate *validator.Validate, data []byte) (*Definition, error) {
	matter, err := frontMatter(string(data))
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal([]byte(matter), &def); err != nil {
		return nil, fmt.Errorf("%w: malformed front matter: %v", models.ErrValidation, err)
	}

	if err := validate.Struct(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	return &def, nil
}

// Config converts the definition into an automation config and applies the
// per-type field rules.
func (d *Definition) Config() (*models.AutomationConfig, error) {
	config := &models.AutomationConfig{
		Enabled:      d.Enabled == nil || *d.Enabled,
		RunOnInstall: d.RunOnInstall,
	}

	for _, t := range d.Triggers {
		config.Triggers = append(config.Triggers, models.Trigger{
			Type:           models.TriggerType(t.Type),
			CronExpression: t.Schedule,
			DelayMs:        t.Delay,
			Pattern:        t.Pattern,
			Tag:            t.Tag,
		})
	}

	for _, a := range d.Actions {
		config.Actions = append(config.Actions, models.Action{
			Type:     models.ActionType(a.Type),
			AgentID:  a.AgentID,
			PromptID: a.PromptID,
			SkillID:  a.SkillID,
			Path:     a.Path,
			Template: a.Template,
			Command:  a.Command,
			Input:    a.Input,
		})
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// frontMatter returns the YAML between the leading "---" fence and its
// closing fence.
func frontMatter(content string) (string, error) {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", fmt.Errorf("%w: definition file must start with a front-matter fence", models.ErrValidation)
	}

	var matter strings.Builder

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			return matter.String(), nil
		}

		matter.WriteString(line)
	}

	return "", fmt.Errorf("%w: unterminated front-matter block", models.ErrValidation)
}
