// Package skill provides the capability-installation collaborator. The
// orchestration core delegates install_skill actions to an Installer and
// records the outcome; the mechanics of fetching and unpacking a skill belong
// to the implementation, not the core.
package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Installer installs a named capability from a source reference and returns a
// short human-readable outcome note.
type Installer interface {
	Install(ctx context.Context, name, source string) (string, error)
}

// NoopInstaller accepts every install request without side effects. Useful
// for tests and deployments that disable skill installation.
type NoopInstaller struct{}

// Install implements Installer.
func (NoopInstaller) Install(ctx context.Context, name, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("skill %s accepted (noop)", name), nil
}

// manifest is the persisted record of one installed skill.
type manifest struct {
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	InstalledAt time.Time `json:"installed_at"`
}

// DirInstaller records installed skills as JSON manifests under a root
// directory, one file per skill. Reinstalling a skill overwrites its
// manifest.
type DirInstaller struct {
	mu   sync.Mutex
	root string
}

// NewDirInstaller constructs an installer rooted at dir.
func NewDirInstaller(dir string) *DirInstaller {
	return &DirInstaller{root: dir}
}

// Install implements Installer.
func (d *DirInstaller) Install(ctx context.Context, name, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("skill: empty name")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", fmt.Errorf("skill: create dir: %w", err)
	}
	data, err := json.MarshalIndent(manifest{Name: name, Source: source, InstalledAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("skill: encode manifest: %w", err)
	}
	path := filepath.Join(d.root, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("skill: write manifest: %w", err)
	}
	return fmt.Sprintf("skill %s installed from %s", name, source), nil
}

// Installed returns the names of skills with a manifest under the root.
func (d *DirInstaller) Installed() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("skill: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".json" {
			names = append(names, e.Name()[:len(e.Name())-len(ext)])
		}
	}
	return names, nil
}
