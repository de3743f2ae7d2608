// Package provider hosts the static registry of execution backend kinds and
// the shared configuration they are built from. Provider kinds register
// themselves with an explicit call from their package initialization; there
// is no runtime discovery or directory scanning.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/goatherd/core"
)

// Config is the declarative description of one provider instance. Which
// fields apply depends on the kind; unused fields are ignored.
type Config struct {
	// ID is the stable provider identifier referenced by agent descriptors.
	ID string `yaml:"id"`

	// Kind selects the registered factory ("cli", "anthropic", "openai").
	Kind string `yaml:"kind"`

	// Capabilities declares the provider's capability flags. Kinds may
	// force-set flags they require.
	Capabilities core.Capabilities `yaml:"capabilities"`

	// CLI backends.
	Binary           string            `yaml:"binary,omitempty"`
	Args             []string          `yaml:"args,omitempty"`
	CreateArgs       []string          `yaml:"create_args,omitempty"`
	DeleteArgs       []string          `yaml:"delete_args,omitempty"`
	AgentFlag        string            `yaml:"agent_flag,omitempty"`
	ModelFlag        string            `yaml:"model_flag,omitempty"`
	SessionFlag      string            `yaml:"session_flag,omitempty"`
	SystemPromptFlag string            `yaml:"system_prompt_flag,omitempty"`
	MessageStdin     bool              `yaml:"message_stdin,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`

	// Model API backends.
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// Factory builds a provider from its config.
type Factory func(cfg Config) (core.Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterKind registers a factory under a kind name. Called by each provider
// package's initialization code; registering a duplicate kind panics, since
// that is a wiring bug.
func RegisterKind(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("provider: kind %q registered twice", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds a provider instance from its config.
func New(cfg Config) (core.Provider, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("provider: config missing id")
	}
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(cfg)
}

// BuildAll builds a registry map from a list of configs, failing on the first
// bad config or duplicate id.
func BuildAll(cfgs []Config) (core.ProviderMap, error) {
	m := make(core.ProviderMap, len(cfgs))
	for _, cfg := range cfgs {
		if _, exists := m[cfg.ID]; exists {
			return nil, fmt.Errorf("provider: duplicate id %q", cfg.ID)
		}
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		m[cfg.ID] = p
	}
	return m, nil
}
