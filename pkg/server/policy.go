package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"warden/pkg/model"
	"warden/pkg/moderation"
)

// Policy is the operator-editable moderation policy: reason presets for the
// ban selection menu and role assignments for staff names. It reloads from
// disk while the server runs.
type Policy struct {
	mu      sync.RWMutex
	path    string
	reasons []string
	staff   map[string]model.Role // lowercased name -> role
}

type policyYAML struct {
	Reasons []string          `yaml:"reasons"`
	Staff   map[string]string `yaml:"staff"` // name -> "moderator" | "admin"
}

// LoadPolicy reads a policy file. An empty path yields the built-in
// defaults: moderation.DefaultReasons and no staff.
func LoadPolicy(path string) (*Policy, error) {
	p := &Policy{
		path:    path,
		reasons: moderation.DefaultReasons,
		staff:   map[string]model.Role{},
	}
	if path == "" {
		return p, nil
	}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) reload() error {
	data, err := os.ReadFile(p.path) //nolint:gosec // path from server config
	if err != nil {
		return fmt.Errorf("server: read policy: %w", err)
	}
	var raw policyYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("server: parse policy: %w", err)
	}

	staff := make(map[string]model.Role, len(raw.Staff))
	for name, roleName := range raw.Staff {
		role := model.ParseRole(roleName)
		if role == model.RoleUser && !strings.EqualFold(roleName, "user") {
			return fmt.Errorf("server: policy: unknown role %q for %q", roleName, name)
		}
		staff[strings.ToLower(name)] = role
	}

	p.mu.Lock()
	if len(raw.Reasons) > 0 {
		p.reasons = raw.Reasons
	}
	p.staff = staff
	p.mu.Unlock()
	return nil
}

// Reasons returns the current reason presets.
func (p *Policy) Reasons() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.reasons...)
}

// RoleFor returns the role assigned to a display name, RoleUser when
// unlisted. Matching is case-insensitive.
func (p *Policy) RoleFor(name string) model.Role {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if role, ok := p.staff[strings.ToLower(name)]; ok {
		return role
	}
	return model.RoleUser
}

// Watch reloads the policy whenever the file changes on disk, until the
// context is cancelled. onReload runs after each successful reload. Reload
// failures keep the previous policy.
func (p *Policy) Watch(ctx context.Context, onReload func()) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server: policy watcher: %w", err)
	}
	if err := watcher.Add(p.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("server: watch policy: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := p.reload(); err != nil {
					slog.Error("policy reload failed, keeping previous", "err", err)
					continue
				}
				slog.Info("policy reloaded", "path", p.path)
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("policy watcher error", "err", err)
			}
		}
	}()
	return nil
}
