package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

func TestSelectTools(t *testing.T) {
	t.Parallel()

	weather := []llm.ToolDefinition{{Name: "get_weather", Description: "Returns the current weather forecast for a city"}}

	tests := []struct {
		name       string
		prompt     string
		defs       []llm.ToolDefinition
		structured bool
		search     bool
		want       toolSelection
	}{
		{"plain prompt without tools", "Write a haiku", nil, false, true, selectNone},
		{"plain prompt with tools", "Write a haiku", weather, false, true, selectFunctions},
		{"search prompt without tools", "Search the web for the latest Go release", nil, false, true, selectSearch},
		{"search prompt beats tools", "Look up the latest news headlines online", weather, false, true, selectSearch},
		{"tool words beat search words", "What is the weather forecast for Paris today?", weather, false, true, selectFunctions},
		{"structured never searches", "Search the web for the latest news", nil, true, true, selectNone},
		{"structured keeps functions", "Search the web for the latest news", weather, true, true, selectFunctions},
		{"search disabled", "Search the web for the latest news", nil, false, false, selectNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectTools(tt.prompt, tt.defs, tt.structured, tt.search))
		})
	}
}

func TestToolKeywords(t *testing.T) {
	t.Parallel()

	keywords := toolKeywords([]llm.ToolDefinition{{Name: "get_stock_price", Description: "Returns the price of a stock ticker"}})
	assert.True(t, keywords["stock"])
	assert.True(t, keywords["price"])
	assert.True(t, keywords["ticker"])
	assert.False(t, keywords["get"])
	assert.False(t, keywords["returns"])
	assert.False(t, keywords["the"])
}
