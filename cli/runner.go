// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Agent and storage setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/richinex/bucketeer/agent"
	"github.com/richinex/bucketeer/bucket"
	"github.com/richinex/bucketeer/config"
	"github.com/richinex/bucketeer/llm"
	"github.com/richinex/bucketeer/storage"
	"github.com/richinex/bucketeer/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	MaxIter  int
	Verbose  bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		MaxIter: 10,
	}
}

const maxStepObservationLen = 400

// RunTask executes a single request with the storage assistant.
func RunTask(ctx context.Context, task string, opts Options) error {
	a, err := createAgent(ctx, opts)
	if err != nil {
		return err
	}

	if opts.Verbose {
		a = a.Verbose(true)
	}

	response := a.Execute(ctx, task)

	switch response.Type {
	case agent.ResponseSuccess:
		if opts.Verbose {
			printAgentSteps(response.Steps)
		}
		fmt.Printf("%s\n", response.Result)
		printStats(response.Metadata)
		return nil
	case agent.ResponseFailure:
		return fmt.Errorf("%s", response.Error)
	case agent.ResponseLoopExceeded:
		printAgentSteps(response.Steps)
		return fmt.Errorf("%s", response.PartialResult)
	default:
		return fmt.Errorf("unexpected response type %v", response.Type)
	}
}

// Chat starts an interactive session with the storage assistant.
// When sessionID is set, history is persisted to SQLite at dbPath.
func Chat(ctx context.Context, sessionID, dbPath string, opts Options) error {
	a, err := createAgent(ctx, opts)
	if err != nil {
		return err
	}

	if opts.Verbose {
		a = a.Verbose(true)
	}

	var store storage.ConversationStorage
	if sessionID != "" {
		s, err := storage.OpenSqlite(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer s.Close()
		store = s
	}

	session := sessionID
	if session == "" {
		session = "default"
	}

	var history []llm.ChatMessage
	if store != nil {
		history, err = store.Load(ctx, session)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(history) > 0 {
			fmt.Printf("Resuming session '%s' (%d messages)\n\n", session, len(history))
		}
	}

	fmt.Print("Chat with the storage assistant. Type 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		response := a.ExecuteWithHistory(ctx, input, history)

		switch response.Type {
		case agent.ResponseSuccess:
			fmt.Printf("\n%s\n\n", response.Result)

			history = append(history,
				llm.UserMessage(input),
				llm.AssistantMessage(response.Result),
			)

			if store != nil {
				if err := store.Save(ctx, session, history); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
				}
			}
		case agent.ResponseFailure:
			fmt.Fprintf(os.Stderr, "\nError: %s\n\n", response.Error)
		case agent.ResponseLoopExceeded:
			fmt.Printf("\n%s\n\n", response.PartialResult)
		}
	}

	return scanner.Err()
}

// ListTools prints the available storage tools.
func ListTools(verbose bool) error {
	// A nil store is fine for listing, no tool executes here.
	registry, err := tools.NewStorageRegistry(nil)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Println(registry.Description())
		return nil
	}

	fmt.Println("Available tools:")
	for _, meta := range registry.List() {
		fmt.Printf("  %-16s %s\n", meta.Name, meta.Description)
	}
	return nil
}

// createAgent builds the storage assistant from environment settings.
func createAgent(ctx context.Context, opts Options) (*agent.Agent, error) {
	if opts.Provider == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}

	provider, err := createProvider(settings)
	if err != nil {
		return nil, err
	}

	manager, err := bucket.New(ctx, bucket.Config{
		AccessKeyID:     settings.S3.AccessKeyID,
		SecretAccessKey: settings.S3.SecretAccessKey,
		SessionToken:    settings.S3.SessionToken,
		Region:          settings.S3.Region,
		Endpoint:        settings.S3.Endpoint,
		UsePathStyle:    settings.S3.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	registry, err := tools.NewStorageRegistry(manager)
	if err != nil {
		return nil, err
	}

	agentConfig := agent.DefaultConfig()
	agentConfig.MaxIterations = opts.MaxIter
	if agentConfig.MaxIterations <= 0 {
		agentConfig.MaxIterations = settings.Agent.MaxIterations
	}

	a := agent.NewWithRegistry(agentConfig, provider, registry)
	a = a.WithToolConfig(tools.ToolConfig{TimeoutSecs: uint64(settings.Agent.ToolTimeoutSecs)})
	return a, nil
}

// createProvider builds the LLM provider from settings.
func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

func printAgentSteps(steps []agent.Step) {
	for _, step := range steps {
		fmt.Printf("Step %d: %s\n", step.Iteration+1, step.Thought)
		if step.Action != nil {
			fmt.Printf("  Action: %s\n", *step.Action)
		}
		if step.Observation != nil {
			fmt.Printf("  Observation: %s\n", truncateString(*step.Observation, maxStepObservationLen))
		}
	}
	fmt.Println()
}

func printStats(meta agent.Metadata) {
	if meta.TokenUsage == nil {
		return
	}
	fmt.Printf("\n[%d tool calls, %d LLM calls, %d tokens, %dms]\n",
		len(meta.ToolCalls), meta.LLMCalls, meta.TokenUsage.TotalTokens, meta.ExecutionTimeMs)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
