package core

import "context"

// Capabilities declares which optional operations a provider supports. Flags
// gate what the orchestrator is allowed to invoke; calling an operation whose
// flag is false is a caller bug, not a provider error.
type Capabilities struct {
	// Agent indicates the backend maintains named agent identities of its own.
	Agent bool `json:"agent"`
	// Model indicates the backend accepts a model selector.
	Model bool `json:"model"`
	// Auth indicates the backend requires credential material at invoke time.
	Auth bool `json:"auth"`
	// Passthrough indicates raw extra arguments are forwarded verbatim.
	Passthrough bool `json:"passthrough"`
	// Reportees indicates the backend can enumerate subordinate agents.
	Reportees bool `json:"reportees"`
	// AgentCreate / AgentDelete gate the optional lifecycle operations.
	AgentCreate bool `json:"agent_create"`
	AgentDelete bool `json:"agent_delete"`
}

// InvokeOptions carries the normalized input for one provider invocation.
// Zero-value fields are omitted from the underlying backend call.
type InvokeOptions struct {
	Message           string            `json:"message"`
	Agent             string            `json:"agent,omitempty"`
	Model             string            `json:"model,omitempty"`
	SystemPrompt      string            `json:"system_prompt,omitempty"`
	ProviderSessionID string            `json:"provider_session_id,omitempty"`
	PassthroughArgs   []string          `json:"passthrough_args,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
}

// ExecutionResult is the uniform outcome of one provider invocation. Code
// follows process exit semantics: zero is success, anything else is a
// provider-level failure that the orchestrator records but does not treat as
// fatal to the run.
type ExecutionResult struct {
	Code              int    `json:"code"`
	Stdout            string `json:"stdout"`
	Stderr            string `json:"stderr"`
	ProviderSessionID string `json:"provider_session_id,omitempty"`
}

// OK reports whether the invocation succeeded at the backend level.
func (r *ExecutionResult) OK() bool { return r != nil && r.Code == 0 }

// Provider is a capability-typed execution backend (a local command-line tool
// or an HTTP model API) that turns a message into a response. Implementations
// must respect context cancellation; a timed-out or cancelled invocation is
// reported as an ordinary failure result or error, never a hang.
type Provider interface {
	// ID returns the stable provider identifier referenced by agent descriptors.
	ID() string

	// Capabilities returns the provider's declared capability flags.
	Capabilities() Capabilities

	// Invoke executes one request against the backend.
	Invoke(ctx context.Context, opts InvokeOptions) (*ExecutionResult, error)
}

// AgentLifecycle is the optional provider extension for backends that can
// create and delete their own agent identities. Only legal to call when the
// corresponding capability flag is set.
type AgentLifecycle interface {
	CreateAgent(ctx context.Context, opts InvokeOptions) (*ExecutionResult, error)
	DeleteAgent(ctx context.Context, opts InvokeOptions) (*ExecutionResult, error)
}

// ProviderRegistry resolves provider ids to live providers for one run.
type ProviderRegistry interface {
	// Provider returns the provider registered under the given id.
	Provider(id string) (Provider, bool)
}

// ProviderMap is a trivial in-memory ProviderRegistry.
type ProviderMap map[string]Provider

// Provider implements ProviderRegistry.
func (m ProviderMap) Provider(id string) (Provider, bool) {
	p, ok := m[id]
	return p, ok
}
