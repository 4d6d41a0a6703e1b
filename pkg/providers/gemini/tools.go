package gemini

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// searchKeywords hint that a prompt needs fresh information from the web
var searchKeywords = []string{
	"search", "look up", "lookup", "google", "web", "internet", "online",
	"latest", "news", "today", "current", "currently", "recent", "recently",
	"this week", "this year", "right now", "who won", "headline",
}

// stopWords are ignored when collecting keywords from tool metadata
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"this": true, "into": true, "your": true, "returns": true, "return": true,
	"given": true, "about": true, "tool": true, "uses": true, "using": true,
}

// toolSelection is what a request offers the model
type toolSelection int

const (
	selectNone toolSelection = iota
	selectFunctions
	selectSearch
)

// selectTools decides between the registered functions and the built-in
// Google Search tool, which genai does not accept in the same request.
// Structured requests never get search. Otherwise the prompt is scored
// against search keywords and against words taken from tool names and
// descriptions, and the higher score wins. Ties go to the functions.
func selectTools(prompt string, defs []llm.ToolDefinition, structured bool, searchEnabled bool) toolSelection {
	if structured || !searchEnabled {
		if len(defs) > 0 {
			return selectFunctions
		}
		return selectNone
	}

	lower := strings.ToLower(prompt)
	searchScore := 0
	for _, kw := range searchKeywords {
		if strings.Contains(lower, kw) {
			searchScore++
		}
	}

	words := promptWords(lower)
	toolScore := 0
	for kw := range toolKeywords(defs) {
		if words[kw] {
			toolScore++
		}
	}

	switch {
	case searchScore > toolScore:
		return selectSearch
	case len(defs) > 0:
		return selectFunctions
	default:
		return selectNone
	}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func promptWords(lower string) map[string]bool {
	words := map[string]bool{}
	for _, w := range splitWords(lower) {
		words[w] = true
	}
	return words
}

// toolKeywords collects the significant words of tool names and descriptions.
// Names are split on underscores and dashes, so get_weather yields "weather".
func toolKeywords(defs []llm.ToolDefinition) map[string]bool {
	keywords := map[string]bool{}
	for _, def := range defs {
		for _, w := range splitWords(strings.ToLower(def.Name + " " + def.Description)) {
			if len(w) < 4 || stopWords[w] {
				continue
			}
			keywords[w] = true
		}
	}
	return keywords
}

// searchTool is the built-in grounding tool
func searchTool() []*genai.Tool {
	return []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
}

// runParallel executes calls concurrently and waits for all of them. The
// vendor reports no per-call timing, so the wall-clock time of the group is
// divided evenly across the calls. Tool failures are kept on each call;
// only an unregistered tool fails the group.
func (c *Client) runParallel(ctx context.Context, calls []llm.ToolCall) error {
	if len(calls) == 0 {
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := range calls {
		g.Go(func() error {
			return c.RunToolCall(gctx, &calls[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	share := time.Since(start) / time.Duration(len(calls))
	for i := range calls {
		calls[i].ExecutionTime = share
	}
	c.Logger().Debug("tool calls finished", "count", len(calls), "elapsed", time.Since(start))
	return nil
}
