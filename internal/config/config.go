// Package config manages the persisted settings for an inputshare
// process: local identity, default ports, the escape hotkey, and the
// peer layout arrangement.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

var logger = log.New(log.Writer(), "Config: ", log.Flags())

// LayoutEntry mirrors internal/layout.Rect for JSON persistence without
// importing internal/layout from here (config must stay a leaf package).
type LayoutEntry struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// GeneralConfig holds the settings that shape how a process starts.
type GeneralConfig struct {
	// DisplayName is this host's unique key in the peer table.
	DisplayName string `json:"display_name"`

	// Role is a start hint only: "controller" or "target". The Role
	// Controller still enforces mutual exclusivity at runtime.
	Role string `json:"role"`

	// ServerHost is the controller address a target dials by default.
	ServerHost string `json:"server_host,omitempty"`

	// Port is the default Session Transport TCP port.
	Port int `json:"port"`

	// DiscoveryPort is the UDP discovery port.
	DiscoveryPort int `json:"discovery_port"`

	// Edge is the controller's default exit edge, used only until the
	// Peer Layout Model reports an actual adjacency.
	Edge string `json:"edge"`

	// EscapeHotkey is the emergency chord that forces REMOTE to LOCAL.
	EscapeHotkey string `json:"escape_hotkey"`

	// APIToken, if set, is required as a Bearer token by the diagnostics
	// server. Empty disables the check.
	APIToken string `json:"api_token,omitempty"`
}

// Config is the full persisted document.
type Config struct {
	General GeneralConfig          `json:"general"`
	Layout  map[string]LayoutEntry `json:"layout,omitempty"`
}

// DefaultConfig returns sensible defaults for a fresh install.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Role:          "controller",
			Port:          24800,
			DiscoveryPort: 24801,
			Edge:          "right",
			EscapeHotkey:  "Ctrl+Alt+Escape",
		},
		Layout: make(map[string]LayoutEntry),
	}
}

// Manager loads, saves, and guards concurrent access to Config.
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager resolves the OS-specific config path and starts from
// defaults; call Load to read a config.json already on disk.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "inputshare")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "inputshare")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "inputshare")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads config.json from disk, if present. Absence is not an
// error: the manager keeps its defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, m.config); err != nil {
		return err
	}
	if m.onChanged != nil {
		m.onChanged()
	}
	return nil
}

// Save writes the current config to disk as indented JSON.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	logger.Printf("saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current in-memory config. Callers must not mutate the
// returned pointer's nested maps without going through Set.
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the in-memory config and notifies any registered
// change callback.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// SetPeerLayout persists a single peer's arranged rectangle.
func (m *Manager) SetPeerLayout(name string, x, y, w, h int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.Layout == nil {
		m.config.Layout = make(map[string]LayoutEntry)
	}
	m.config.Layout[name] = LayoutEntry{X: x, Y: y, W: w, H: h}
}

// RegisterChangeCallback installs a hook invoked whenever Load or Set
// applies a new config.
func (m *Manager) RegisterChangeCallback(cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = cb
}
