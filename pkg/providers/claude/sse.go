package claude

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const sseDone = "[DONE]"

type sseEvent struct {
	Event string
	Data  string
}

// sseReader splits a server-sent events body into events
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{scanner: scanner}
}

// Next returns the next event, or io.EOF at the end of the body. A
// "data: [DONE]" line is returned as an event whose Data is "[DONE]".
func (r *sseReader) Next() (*sseEvent, error) {
	var event sseEvent
	var data []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case line == "":
			if len(data) > 0 {
				event.Data = strings.Join(data, "\n")
				return &event, nil
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if value == sseDone {
				return &sseEvent{Event: event.Event, Data: sseDone}, nil
			}
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		event.Data = strings.Join(data, "\n")
		return &event, nil
	}
	return nil, io.EOF
}

// streamEvent is the JSON payload of a streaming Messages API event. Bedrock
// delivers the same payloads as event-stream chunks.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeStreamEvent returns the text carried by one event and whether the
// message is complete
func decodeStreamEvent(data []byte) (string, bool, error) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", false, fmt.Errorf("decoding stream event: %w", err)
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, false, nil
		}
	case "message_stop":
		return "", true, nil
	case "error":
		if ev.Error != nil {
			return "", true, fmt.Errorf("%s: %s", ev.Error.Type, ev.Error.Message)
		}
		return "", true, fmt.Errorf("stream error")
	}
	return "", false, nil
}
