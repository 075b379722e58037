package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/palak/internal/logger"
)

// ManifestFile is the manifest name looked up in every plugin directory.
const ManifestFile = "plugin.json"

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager manages plugin discovery and access.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	mu        sync.RWMutex
	log       *logger.Logger
}

// NewManager creates a new plugin Manager with the given plugin directory.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		log:       logger.With("plugin"),
	}
}

// Discover replaces the known plugins with those found in the plugin
// directory. Every subdirectory holding a valid plugin.json is a plugin;
// invalid manifests are logged and skipped. A missing plugin directory is
// not an error.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.pluginDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		entries = nil
	case err != nil:
		return fmt.Errorf("read plugin dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(m.pluginDir, entry.Name())
		p, err := loadPlugin(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			m.log.Warn().Err(err).Str("dir", dir).Msg("skipping plugin")
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			m.log.Warn().
				Str("plugin", p.Manifest.Name).
				Str("kept", prev.Path).
				Str("skipped", dir).
				Msg("duplicate plugin name")
			continue
		}

		found[p.Manifest.Name] = p
		m.log.Debug().Str("plugin", p.Manifest.Name).Strs("actions", p.Manifest.Actions).Msg("discovered plugin")
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.log.Info().Int("count", len(found)).Str("dir", m.pluginDir).Msg("plugin discovery complete")
	return nil
}

// loadPlugin reads and validates the manifest in dir. It returns an error
// wrapping os.ErrNotExist when dir has no manifest.
func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}

	return plugin, nil
}

// List returns all discovered plugins ordered by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	m.mu.RUnlock()

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
