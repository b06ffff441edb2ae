// Package prefs persists per-user CubeSpace settings: the UI theme, the cube
// color last picked, and the owner name last saved. The file lives at
// ~/.config/cubespace/prefs.toml unless a path is given.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for CubeSpace.
type Prefs struct {
	Theme     string `toml:"theme"`
	OwnerName string `toml:"owner_name,omitempty"`
	Color     string `toml:"color,omitempty"`
}

const (
	defaultPrefsPath = "~/.config/cubespace/prefs.toml"
	defaultTheme     = "Nightfall"
	maxOwnerName     = 80
)

// Default returns the preferences of a first run.
func Default() Prefs {
	return Prefs{Theme: defaultTheme}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from path. Preferences are a convenience, so a
// missing, unreadable or malformed file yields defaults rather than an error;
// the error return is reserved for callers that want to surface it later.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Default(), nil
	}

	p := Default()
	if err := toml.Unmarshal(data, &p); err != nil {
		return Default(), nil
	}
	return p.normalize(), nil
}

// Save writes p to path through a temporary file so a crash never leaves a
// half-written prefs file behind.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	data, err := toml.Marshal(p.normalize())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

// normalize trims fields, restores the default theme, and drops values the
// UI could not use.
func (p Prefs) normalize() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	p.OwnerName = strings.TrimSpace(p.OwnerName)
	if r := []rune(p.OwnerName); len(r) > maxOwnerName {
		p.OwnerName = string(r[:maxOwnerName])
	}
	p.Color = strings.TrimSpace(p.Color)
	if !isHexColor(p.Color) {
		p.Color = ""
	}
	return p
}

// isHexColor reports whether s looks like #rrggbb.
func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	return filepath.Abs(path)
}
