// Package gemini provides an LLM client for Google Gemini models, served
// either by the Gemini API or by Vertex AI.
//
// The client implements llm.Client on top of google.golang.org/genai.
// Besides the shared Ask, AskStream and BatchAsk it:
//   - runs the function calls of one model turn concurrently and answers
//     them in a single follow-up request
//   - offers the built-in Google Search tool instead of the registered
//     functions when a prompt reads like a web search
//   - requests structured output natively, with a response MIME type and
//     schema, when no functions are offered
//   - generates images, speech and videos through GenerateImage,
//     GenerateSpeech and GenerateVideo
//
// Usage:
//
//	client, err := gemini.NewClient(llm.ClientConfig{Model: "gemini-2.5-flash"})
//	if err != nil {
//	    return err
//	}
//	msg, err := client.Ask(ctx, llm.AskRequest{Prompt: "Hello"})
package gemini
