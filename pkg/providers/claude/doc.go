// Package claude implements the llm.Client interface for Anthropic Claude
// models, either through the Anthropic Messages API or through AWS Bedrock.
//
// The Messages API transport also supports the native Message Batches API:
// BatchAsk submits every request at once, polls the batch at a fixed interval
// until it ends and then translates each result. On Bedrock, BatchAsk falls
// back to answering the requests one after the other.
//
// Example:
//
//	client, err := claude.NewClient(llm.ClientConfig{Model: string(claude.ModelSonnet45)})
//	if err != nil {
//	    return err
//	}
//	msg, err := client.Ask(ctx, llm.AskRequest{Prompt: "What is 2+2?"})
package claude
