package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?i)```json\\s*([\\s\\S]*?)```"),
	regexp.MustCompile("```\\w*\\s*([\\s\\S]*?)```"),
}

// ExtractJSONFromResponse extracts JSON from LLM response that may contain markdown
// code blocks or other text. It returns the extracted JSON string or the original
// response if no JSON is found.
//
// Example:
//
//	response := "Here is the data:\n```json\n{\"key\": \"value\"}\n```"
//	jsonStr := ExtractJSONFromResponse(response)
//	fmt.Println(jsonStr) // Output: {"key": "value"}
func ExtractJSONFromResponse(text string) string {
	text = strings.TrimSpace(text)
	if isValidJSONStart(text) && isValidJSON(text) {
		return text
	}

	for _, re := range fencedBlockPatterns {
		for _, matches := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(matches[1])
			if isValidJSONStart(candidate) && isValidJSON(candidate) {
				return candidate
			}
			// prose inside the fence
			if block, ok := firstJSONBlock(candidate); ok {
				return block
			}
		}
	}

	if block, ok := firstJSONBlock(text); ok {
		return block
	}

	return text
}

// isValidJSONStart checks if text starts with valid JSON characters
func isValidJSONStart(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")
}

// isValidJSON checks if the text is valid JSON by attempting to parse it
func isValidJSON(text string) bool {
	var temp interface{}
	return json.Unmarshal([]byte(text), &temp) == nil
}

// firstJSONBlock returns the first balanced object or array in text that
// parses as JSON
func firstJSONBlock(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		end := matchingBracket(text[i:])
		if end < 0 {
			continue
		}
		candidate := text[i : i+end+1]
		if isValidJSON(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// matchingBracket returns the index of the bracket closing the one at
// text[0], skipping brackets inside strings, or -1.
func matchingBracket(text string) int {
	open := text[0]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		char := text[i]
		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch char {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// RemoveBlocks removes all blocks of the specified tag from the input string.
// For example, RemoveBlocks(text, "think") will remove all <think>...</think> blocks.
func RemoveBlocks(text, tag string) string {
	pattern := fmt.Sprintf(`(?s)<%s>.*?</%s>`, regexp.QuoteMeta(tag), regexp.QuoteMeta(tag))
	return regexp.MustCompile(pattern).ReplaceAllString(text, "")
}
