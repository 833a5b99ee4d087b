// Agent configuration types.

package agent

import (
	"github.com/richinex/bucketeer/tools"
)

// DefaultMaxIterations bounds the reasoning loop when no limit is configured.
const DefaultMaxIterations = 10

// DefaultSystemPrompt describes the assistant's storage capabilities.
const DefaultSystemPrompt = `You are a helpful assistant for Amazon S3 object storage.
You can list buckets, list objects in a bucket, upload and download files,
delete objects, read object metadata, and search for objects by name or
metadata. Use the available tools to carry out the user's request and
report the outcome in plain language. If a tool fails, explain the failure
to the user instead of guessing.`

// Config holds agent configuration.
type Config struct {
	// Name is a unique identifier for the agent.
	Name string

	// SystemPrompt guides the agent's behavior.
	SystemPrompt string

	// Tools available to this agent.
	Tools []tools.Tool

	// MaxIterations bounds the reasoning loop. Zero means DefaultMaxIterations.
	MaxIterations int
}

// DefaultConfig returns the standard storage assistant configuration.
func DefaultConfig() Config {
	return Config{
		Name:          "bucketeer",
		SystemPrompt:  DefaultSystemPrompt,
		Tools:         []tools.Tool{},
		MaxIterations: DefaultMaxIterations,
	}
}

// HasTools returns true if the agent has tools configured.
func (c *Config) HasTools() bool {
	return len(c.Tools) > 0
}

// Iterations returns the configured loop bound, applying the default.
func (c *Config) Iterations() int {
	if c.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return c.MaxIterations
}
