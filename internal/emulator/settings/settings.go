// Package settings manages the Emulator's layered runtime configuration:
// built-in defaults, an optional settings file (JSON or YAML), and a fixed
// allow-list of environment overrides, in that precedence order. Values are
// addressed by dotted paths ("matrix.homeserver") and validated against an
// embedded JSON Schema on every mutation.
package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	delim = "."

	// maxBackups bounds the rotating settings backups kept on disk.
	maxBackups = 10
)

//go:embed schema.json
var schemaJSON string

// settingsSchema validates the whole settings tree. The schema is embedded,
// so a compile failure is a programming error.
var settingsSchema = jsonschema.MustCompileString("settings/schema.json", schemaJSON)

// envOverrides is the closed allow-list of environment variables that may
// override file and default settings. Paths ending in timeout or interval
// parse as integers; malformed values are skipped with a warning.
var envOverrides = map[string]string{
	"MATRIX_HOMESERVER":         "matrix.homeserver",
	"MATRIX_USERNAME":           "matrix.username",
	"MATRIX_SYNC_TIMEOUT":       "matrix.sync_timeout",
	"MATRIX_REQUEST_TIMEOUT":    "matrix.request_timeout",
	"MATRIX_KEEPALIVE_INTERVAL": "matrix.keepalive_interval",
	"EMULATOR_PERSONALITY":      "emulator.personality",
	"EMULATOR_LOG_LEVEL":        "emulator.log_level",
	"EMULATOR_KNOWLEDGE_FILE":   "emulator.knowledge_file",
}

// defaults is the complete built-in settings tree. Every key the rest of the
// program reads exists here, so lookups never miss.
func defaults() map[string]any {
	return map[string]any{
		"emulator": map[string]any{
			"personality":        "curious_researcher",
			"log_level":          "INFO",
			"knowledge_file":     "emulator_knowledge.json",
			"max_context_length": 10,
			"response_timeout":   30,
		},
		"matrix": map[string]any{
			"homeserver":         "https://envs.net",
			"username":           "@ribit.2.0:envs.net",
			"sync_timeout":       30000,
			"request_timeout":    10,
			"keepalive_interval": 60,
			"auto_join_rooms":    true,
			"authorized_users": []string{
				"@rabit233:matrix.anarchists.space",
				"@rabit232:envs.net",
			},
		},
		"features": map[string]any{
			"emotional_intelligence": true,
			"multi_language_support": true,
			"knowledge_management":   true,
			"vision_processing":      true,
			"adaptive_learning":      true,
			"code_generation":        true,
		},
		"security": map[string]any{
			"command_authorization":   true,
			"rate_limiting":           true,
			"max_requests_per_minute": 60,
			"blocked_users":           []string{},
			"allowed_commands":        []string{"?help", "?sys", "?status", "?command"},
		},
		"performance": map[string]any{
			"max_concurrent_requests": 10,
			"cache_size":              1000,
			"cleanup_interval":        3600,
			"memory_limit_mb":         512,
		},
	}
}

// Manager holds the merged settings tree. All methods are safe for
// concurrent use.
type Manager struct {
	mu        sync.Mutex
	k         *koanf.Koanf
	path      string
	backupDir string
}

// Load builds a Manager for the settings file at path. A missing file means
// defaults; an unreadable or invalid file is logged and ignored, so loading
// never fails the caller. Environment overrides apply last.
func Load(path string) *Manager {
	k := koanf.New(delim)
	if err := k.Load(confmap.Provider(defaults(), delim), nil); err != nil {
		// The defaults map is static; this cannot fail at runtime.
		panic(fmt.Sprintf("settings: load defaults: %v", err))
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			slog.Warn("settings: file unreadable, using defaults", "path", path, "err", err)
		} else {
			slog.Info("settings: loaded", "path", path)
		}
	} else {
		slog.Info("settings: no settings file, using defaults", "path", path)
	}

	applyEnv(k)

	if err := validateRaw(k.Raw()); err != nil {
		slog.Warn("settings: validation", "err", err)
	}

	return &Manager{
		k:         k,
		path:      path,
		backupDir: filepath.Join(filepath.Dir(path), "settings_backups"),
	}
}

// parserFor picks the file parser by extension. Anything that is not YAML is
// treated as JSON.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return kyaml.Parser()
	default:
		return kjson.Parser()
	}
}

// applyEnv overlays the allow-listed environment variables onto k.
func applyEnv(k *koanf.Koanf) {
	for envVar, settingPath := range envOverrides {
		raw, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}

		var value any = raw
		if strings.HasSuffix(settingPath, "timeout") || strings.HasSuffix(settingPath, "interval") {
			n, err := strconv.Atoi(raw)
			if err != nil {
				slog.Warn("settings: ignoring non-numeric override", "env", envVar, "value", raw)
				continue
			}
			value = n
		}

		if err := k.Set(settingPath, value); err != nil {
			slog.Warn("settings: env override failed", "env", envVar, "err", err)
			continue
		}
		slog.Debug("settings: env override applied", "env", envVar, "path", settingPath)
	}
}

// validateRaw checks a settings tree against the embedded schema. The tree is
// round-tripped through JSON so the validator sees plain decoded values.
func validateRaw(raw map[string]any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("settings: marshal for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("settings: unmarshal for validation: %w", err)
	}
	if err := settingsSchema.Validate(doc); err != nil {
		return fmt.Errorf("settings: schema: %w", err)
	}
	return nil
}

// Get returns the value at the dotted path, or nil when absent.
func (m *Manager) Get(path string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Get(path)
}

// String returns the string value at path ("" when absent).
func (m *Manager) String(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.String(path)
}

// Int returns the integer value at path (0 when absent).
func (m *Manager) Int(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Int(path)
}

// Bool returns the boolean value at path (false when absent).
func (m *Manager) Bool(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Bool(path)
}

// Strings returns the string-slice value at path (nil when absent).
func (m *Manager) Strings(path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Strings(path)
}

// Exists reports whether path is set.
func (m *Manager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Exists(path)
}

// All returns a deep copy of the whole settings tree.
func (m *Manager) All() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Raw()
}

// Set updates the value at the dotted path and persists the tree. The update
// is validated against the schema first; an invalid value leaves the current
// tree untouched.
func (m *Manager) Set(path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trial, err := m.trialWith(path, value)
	if err != nil {
		return err
	}
	m.k = trial
	slog.Info("settings: updated", "path", path)
	return m.saveLocked()
}

// trialWith applies one update to a copy of the tree and validates it.
// Must be called with mu held.
func (m *Manager) trialWith(path string, value any) (*koanf.Koanf, error) {
	trial := koanf.New(delim)
	if err := trial.Load(confmap.Provider(m.k.Raw(), delim), nil); err != nil {
		return nil, fmt.Errorf("settings: copy tree: %w", err)
	}
	if err := trial.Set(path, value); err != nil {
		return nil, fmt.Errorf("settings: set %s: %w", path, err)
	}
	if err := validateRaw(trial.Raw()); err != nil {
		return nil, fmt.Errorf("settings: reject %s=%v: %w", path, value, err)
	}
	return trial, nil
}

// Save persists the current tree to the settings file, rotating a timestamped
// backup of the previous file first.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// saveLocked writes the tree as indented JSON. Must be called with mu held.
func (m *Manager) saveLocked() error {
	m.backupLocked()

	data, err := json.MarshalIndent(m.k.Raw(), "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("settings: write %s: %w", m.path, err)
	}
	return nil
}

// backupLocked copies the existing settings file into the backup directory
// and prunes old backups. Backup failures are logged, never fatal.
func (m *Manager) backupLocked() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	if err := os.MkdirAll(m.backupDir, 0o700); err != nil {
		slog.Warn("settings: backup dir", "err", err)
		return
	}

	name := fmt.Sprintf("settings_backup_%s.json", time.Now().UTC().Format("20060102_150405"))
	if err := os.WriteFile(filepath.Join(m.backupDir, name), data, 0o600); err != nil {
		slog.Warn("settings: backup write", "err", err)
		return
	}

	backups, err := filepath.Glob(filepath.Join(m.backupDir, "settings_backup_*.json"))
	if err != nil {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:max(0, len(backups)-maxBackups)] {
		if err := os.Remove(old); err != nil {
			slog.Warn("settings: backup prune", "path", old, "err", err)
		}
	}
}

// Export writes the current tree to an arbitrary file as indented JSON.
func (m *Manager) Export(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.k.Raw(), "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("settings: export %s: %w", path, err)
	}
	return nil
}

// Import merges a settings file over the current tree, validates the result,
// and persists it. An invalid import leaves the current tree untouched.
func (m *Manager) Import(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trial := koanf.New(delim)
	if err := trial.Load(confmap.Provider(m.k.Raw(), delim), nil); err != nil {
		return fmt.Errorf("settings: copy tree: %w", err)
	}
	if err := trial.Load(file.Provider(path), parserFor(path)); err != nil {
		return fmt.Errorf("settings: import %s: %w", path, err)
	}
	if err := validateRaw(trial.Raw()); err != nil {
		return fmt.Errorf("settings: import rejected: %w", err)
	}

	m.k = trial
	slog.Info("settings: imported", "path", path)
	return m.saveLocked()
}

// Reset restores one section (or the whole tree when section is "") to the
// built-in defaults and persists.
func (m *Manager) Reset(section string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def := defaults()
	if section == "" {
		k := koanf.New(delim)
		if err := k.Load(confmap.Provider(def, delim), nil); err != nil {
			return fmt.Errorf("settings: reset: %w", err)
		}
		m.k = k
		slog.Info("settings: reset all sections to defaults")
		return m.saveLocked()
	}

	sub, ok := def[section]
	if !ok {
		return fmt.Errorf("settings: unknown section %q", section)
	}
	trial, err := m.trialWith(section, sub)
	if err != nil {
		return err
	}
	m.k = trial
	slog.Info("settings: reset section to defaults", "section", section)
	return m.saveLocked()
}

// MatrixConfig is the typed view of the matrix section.
type MatrixConfig struct {
	Homeserver        string
	Username          string
	SyncTimeout       time.Duration
	RequestTimeout    time.Duration
	KeepaliveInterval time.Duration
	AutoJoinRooms     bool
	AuthorizedUsers   []string
}

// Matrix returns the matrix section. Sync timeout is stored in milliseconds,
// the other intervals in seconds.
func (m *Manager) Matrix() MatrixConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MatrixConfig{
		Homeserver:        m.k.String("matrix.homeserver"),
		Username:          m.k.String("matrix.username"),
		SyncTimeout:       time.Duration(m.k.Int("matrix.sync_timeout")) * time.Millisecond,
		RequestTimeout:    time.Duration(m.k.Int("matrix.request_timeout")) * time.Second,
		KeepaliveInterval: time.Duration(m.k.Int("matrix.keepalive_interval")) * time.Second,
		AutoJoinRooms:     m.k.Bool("matrix.auto_join_rooms"),
		AuthorizedUsers:   m.k.Strings("matrix.authorized_users"),
	}
}

// EmulatorConfig is the typed view of the emulator section.
type EmulatorConfig struct {
	Personality      string
	LogLevel         slog.Level
	KnowledgeFile    string
	MaxContextLength int
	ResponseTimeout  time.Duration
}

// Emulator returns the emulator section.
func (m *Manager) Emulator() EmulatorConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return EmulatorConfig{
		Personality:      m.k.String("emulator.personality"),
		LogLevel:         parseLogLevel(m.k.String("emulator.log_level")),
		KnowledgeFile:    m.k.String("emulator.knowledge_file"),
		MaxContextLength: m.k.Int("emulator.max_context_length"),
		ResponseTimeout:  time.Duration(m.k.Int("emulator.response_timeout")) * time.Second,
	}
}

// SecurityConfig is the typed view of the security section.
type SecurityConfig struct {
	CommandAuthorization bool
	RateLimiting         bool
	MaxRequestsPerMinute int
	BlockedUsers         []string
	AllowedCommands      []string
}

// Security returns the security section.
func (m *Manager) Security() SecurityConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SecurityConfig{
		CommandAuthorization: m.k.Bool("security.command_authorization"),
		RateLimiting:         m.k.Bool("security.rate_limiting"),
		MaxRequestsPerMinute: m.k.Int("security.max_requests_per_minute"),
		BlockedUsers:         m.k.Strings("security.blocked_users"),
		AllowedCommands:      m.k.Strings("security.allowed_commands"),
	}
}

// FeatureEnabled reports whether a feature flag in the features section is on.
func (m *Manager) FeatureEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Bool("features." + name)
}

// IsAuthorized reports whether userID may run system commands.
func (m *Manager) IsAuthorized(userID string) bool {
	for _, u := range m.Strings("matrix.authorized_users") {
		if u == userID {
			return true
		}
	}
	return false
}

// IsBlocked reports whether userID is on the block list.
func (m *Manager) IsBlocked(userID string) bool {
	for _, u := range m.Strings("security.blocked_users") {
		if u == userID {
			return true
		}
	}
	return false
}

// AddAuthorizedUser appends userID to the authorized list and persists.
// Adding a user who is already listed is a no-op.
func (m *Manager) AddAuthorizedUser(userID string) error {
	if m.IsAuthorized(userID) {
		return nil
	}
	users := append(m.Strings("matrix.authorized_users"), userID)
	return m.Set("matrix.authorized_users", users)
}

// RemoveAuthorizedUser removes userID from the authorized list and persists.
// Removing an unlisted user is a no-op.
func (m *Manager) RemoveAuthorizedUser(userID string) error {
	users := m.Strings("matrix.authorized_users")
	kept := users[:0]
	for _, u := range users {
		if u != userID {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return nil
	}
	return m.Set("matrix.authorized_users", kept)
}

// parseLogLevel maps the configured level name onto slog's levels, defaulting
// to info for unknown names.
func parseLogLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
