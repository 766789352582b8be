// Package llm provides chat-completion and embedding clients for
// OpenAI-compatible APIs via langchaingo.
//
// The Completer interface is what the learning subsystem consumes; Client is
// the production implementation. A client-side rate limiter smooths request
// bursts against shared endpoints.
//
// Example usage with a local OpenAI-compatible server:
//
//	config := llm.Config{
//	    BaseURL: "http://localhost:11434/v1",
//	    Model:   "qwen2.5-coder",
//	}
//	client, err := llm.NewClient(config, logger)
//	if err != nil {
//	    // Handle error
//	}
//	resp, err := client.Complete(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{{Role: llm.RoleHuman, Content: "classify this failure"}},
//	})
package llm
