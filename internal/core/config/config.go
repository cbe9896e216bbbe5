package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/neilberkman/devlog/internal/core/log"
)

// DefaultExportTemplate renders a session as markdown. Fields: name,
// description, id, started, notes, has_notes, actions (index, type, time,
// summary, has_output, output, has_hunks, hunks(marker, text)), has_issues,
// issues(value, count), has_files, files(value, count, modified).
const DefaultExportTemplate = `# {{{name}}}

**Session ID:** ` + "`{{id}}`" + `  
**Started:** {{started}}  
**Actions:** {{action_count}}

{{{description}}}
{{#has_notes}}

## Notes

{{{notes}}}
{{/has_notes}}
{{#has_issues}}

**Issues:** {{#issues}}{{value}} {{/issues}}
{{/has_issues}}
{{#has_files}}

**Files:**
{{#files}}
- ` + "`{{value}}`" + `{{#modified}} (modified){{/modified}}
{{/files}}
{{/has_files}}

---
{{#actions}}

### {{index}}. {{type}} _{{time}}_

{{{summary}}}
{{#has_output}}

` + "```" + `
{{{output}}}
` + "```" + `
{{/has_output}}
{{#has_hunks}}

` + "```diff" + `
{{#hunks}}
{{marker}} {{{text}}}
{{/hunks}}
` + "```" + `
{{/has_hunks}}
{{/actions}}
`

// Capture modes for terminal output
const (
	CaptureNone      = "none"
	CaptureClipboard = "clipboard"
)

// Namer backends
const (
	NamerHeuristic = "heuristic"
	NamerBedrock   = "bedrock"
	NamerOpenAI    = "openai"
)

type Config struct {
	SessionsDir        string
	DBPath             string
	LogLevel           string
	TrackTerminal      bool
	TrackFiles         bool
	ConfirmCodeChanges bool
	CaptureOutput      string
	WatchIgnore        []string
	Namer              string
	Bedrock            BedrockConfig
	OpenAI             OpenAIConfig
	ExportTemplate     string
}

// BedrockConfig selects the AWS Bedrock model used for naming sessions
type BedrockConfig struct {
	Region  string `toml:"region"`
	ModelID string `toml:"model_id"`
	Profile string `toml:"profile"`
}

// OpenAIConfig selects the OpenAI-compatible endpoint used for naming sessions
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

type tomlConfig struct {
	SessionsDir        string        `toml:"sessions_dir"`
	DBPath             string        `toml:"db_path"`
	LogLevel           string        `toml:"log_level"`
	TrackTerminal      *bool         `toml:"track_terminal"`
	TrackFiles         *bool         `toml:"track_files"`
	ConfirmCodeChanges *bool         `toml:"confirm_code_changes"`
	CaptureOutput      string        `toml:"capture_output"`
	WatchIgnore        []string      `toml:"watch_ignore"`
	Namer              string        `toml:"namer"`
	Bedrock            BedrockConfig `toml:"bedrock"`
	OpenAI             OpenAIConfig  `toml:"openai"`
	ExportTemplate     string        `toml:"export_template"`
}

// Dir returns ~/.config/devlog
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, ".config", "devlog")
}

// Defaults returns the configuration used when no config file exists
func Defaults(configDir string) *Config {
	return &Config{
		SessionsDir:        filepath.Join(configDir, "sessions"),
		DBPath:             filepath.Join(configDir, "index.db"),
		LogLevel:           "warn",
		TrackTerminal:      true,
		TrackFiles:         true,
		ConfirmCodeChanges: true,
		CaptureOutput:      CaptureNone,
		WatchIgnore:        []string{".git", "node_modules", "vendor", ".idea", ".vscode", "*.swp", "*~"},
		Namer:              NamerHeuristic,
		ExportTemplate:     DefaultExportTemplate,
	}
}

// Load reads config from ~/.config/devlog/
func Load() (*Config, error) {
	return LoadFrom(Dir())
}

// LoadFrom reads config.toml and export_template.mustache from configDir.
// Missing or unreadable files fall back to defaults.
func LoadFrom(configDir string) (*Config, error) {
	cfg := Defaults(configDir)

	tomlPath := filepath.Join(configDir, "config.toml")
	templatePath := filepath.Join(configDir, "export_template.mustache")

	// Load TOML config if it exists
	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err != nil {
			log.Warn().Err(err).Str("path", tomlPath).Msg("ignoring invalid config file")
		} else {
			cfg.apply(tc, configDir)
		}
	}

	// If custom template exists, use it
	if cfg.ExportTemplate == DefaultExportTemplate {
		if data, err := os.ReadFile(templatePath); err == nil {
			cfg.ExportTemplate = string(data)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) apply(tc tomlConfig, configDir string) {
	if tc.SessionsDir != "" {
		cfg.SessionsDir = expandHome(tc.SessionsDir)
	}
	if tc.DBPath != "" {
		cfg.DBPath = expandHome(tc.DBPath)
	}
	if tc.LogLevel != "" {
		cfg.LogLevel = tc.LogLevel
	}
	if tc.TrackTerminal != nil {
		cfg.TrackTerminal = *tc.TrackTerminal
	}
	if tc.TrackFiles != nil {
		cfg.TrackFiles = *tc.TrackFiles
	}
	if tc.ConfirmCodeChanges != nil {
		cfg.ConfirmCodeChanges = *tc.ConfirmCodeChanges
	}
	switch strings.ToLower(tc.CaptureOutput) {
	case CaptureClipboard:
		cfg.CaptureOutput = CaptureClipboard
	case CaptureNone, "":
	default:
		log.Warn().Str("capture_output", tc.CaptureOutput).Msg("unknown capture mode, using none")
	}
	if tc.WatchIgnore != nil {
		cfg.WatchIgnore = tc.WatchIgnore
	}
	switch strings.ToLower(tc.Namer) {
	case NamerBedrock, NamerOpenAI:
		cfg.Namer = strings.ToLower(tc.Namer)
	case NamerHeuristic, "":
	default:
		log.Warn().Str("namer", tc.Namer).Msg("unknown namer, using heuristic")
	}
	cfg.Bedrock = tc.Bedrock
	cfg.OpenAI = tc.OpenAI
	if tc.ExportTemplate != "" {
		path := expandHome(tc.ExportTemplate)
		if !filepath.IsAbs(path) {
			path = filepath.Join(configDir, path)
		}
		if data, err := os.ReadFile(path); err == nil {
			cfg.ExportTemplate = string(data)
		} else {
			log.Warn().Err(err).Str("path", path).Msg("export template not readable, using default")
		}
	}
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("DEVLOG_SESSIONS_DIR"); v != "" {
		cfg.SessionsDir = expandHome(v)
	}
	if v := os.Getenv("DEVLOG_DB"); v != "" {
		cfg.DBPath = expandHome(v)
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// SocketPath is where a running recorder listens for host events
func (cfg *Config) SocketPath() string {
	return filepath.Join(cfg.SessionsDir, "devlog.sock")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
