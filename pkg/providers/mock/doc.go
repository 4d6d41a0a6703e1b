// Package mock provides a scripted llm.Client for testing code built on
// go-llm-unify without calling a vendor.
//
// Turns are replayed in order through the same tool loop the real adapters
// run: a turn requesting tool calls makes the client execute the registered
// tools and send their results back, which consumes the next turn. Every
// request is logged, so tests can count round trips and inspect what would
// have been sent. Once the script is exhausted the client answers with
// canned replies.
//
//	client, _ := mock.NewClient(llm.ClientConfig{})
//	client.WithToolCall("add", map[string]any{"a": 5, "b": 3}).
//	    WithSimpleResponse("5 + 3 = 8")
//	msg, err := client.Ask(ctx, llm.AskRequest{Prompt: "add 5 and 3"})
package mock
