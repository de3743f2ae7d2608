// Package model defines the normalized text-generation interface used by the
// model-backed planner and the model-API provider, together with a mock
// implementation for tests. Vendor adapters live in the subpackages
// anthropic and openai.
package model
