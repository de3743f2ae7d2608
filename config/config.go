// Package config loads the goatherd runtime configuration: the agent roster,
// provider declarations, the default entry agent and runtime paths. The file
// format is YAML; unset fields fall back to the defaults from Default.
package config

import (
	"fmt"
	"os"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/provider"
	"gopkg.in/yaml.v3"
)

// AgentConfig declares one agent of the roster.
type AgentConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Provider    string   `yaml:"provider"`
	Skills      []string `yaml:"skills,omitempty"`
	CanReceive  *bool    `yaml:"can_receive,omitempty"`  // default true
	CanDelegate bool     `yaml:"can_delegate,omitempty"` // default false
}

// Config is the top-level goatherd configuration.
type Config struct {
	// DefaultAgentID is the fallback entry agent for routing.
	DefaultAgentID string `yaml:"default_agent"`

	// MaxSteps caps the orchestration step budget per run.
	MaxSteps int `yaml:"max_steps"`

	// SessionDir, LedgerDir, WorkspaceDir and SkillDir root the file-backed
	// stores. Empty values select in-memory implementations.
	SessionDir   string `yaml:"session_dir,omitempty"`
	LedgerDir    string `yaml:"ledger_dir,omitempty"`
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`
	SkillDir     string `yaml:"skill_dir,omitempty"`

	Agents    []AgentConfig     `yaml:"agents"`
	Providers []provider.Config `yaml:"providers"`
}

// Default returns the baseline configuration: a "goat" manager entry agent
// and a twelve step budget. Callers add agents and providers on top.
func Default() *Config {
	return &Config{
		DefaultAgentID: "goat",
		MaxSteps:       12,
	}
}

// Load reads and validates a YAML config file, applying defaults for unset
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-references: unique agent ids, providers resolving,
// the default agent present once agents are declared.
func (c *Config) Validate() error {
	if c.DefaultAgentID == "" {
		return fmt.Errorf("config: default_agent is required")
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = Default().MaxSteps
	}

	providerIDs := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("config: provider with empty id")
		}
		if providerIDs[p.ID] {
			return fmt.Errorf("config: duplicate provider id %q", p.ID)
		}
		providerIDs[p.ID] = true
	}

	agentIDs := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent with empty id")
		}
		if agentIDs[a.ID] {
			return fmt.Errorf("config: duplicate agent id %q", a.ID)
		}
		agentIDs[a.ID] = true
		if a.Provider == "" {
			return fmt.Errorf("config: agent %q missing provider", a.ID)
		}
		if len(c.Providers) > 0 && !providerIDs[a.Provider] {
			return fmt.Errorf("config: agent %q references unknown provider %q", a.ID, a.Provider)
		}
	}
	if len(c.Agents) > 0 && !agentIDs[c.DefaultAgentID] {
		return fmt.Errorf("config: default agent %q not in roster", c.DefaultAgentID)
	}
	return nil
}

// Roster converts the agent declarations into the core roster.
func (c *Config) Roster() (*core.Roster, error) {
	descriptors := make([]core.AgentDescriptor, 0, len(c.Agents))
	for _, a := range c.Agents {
		canReceive := true
		if a.CanReceive != nil {
			canReceive = *a.CanReceive
		}
		name := a.Name
		if name == "" {
			name = a.ID
		}
		descriptors = append(descriptors, core.AgentDescriptor{
			AgentID:     a.ID,
			Name:        name,
			Description: a.Description,
			ProviderID:  a.Provider,
			Skills:      a.Skills,
			CanReceive:  canReceive,
			CanDelegate: a.CanDelegate,
		})
	}
	return core.NewRoster(descriptors...)
}
