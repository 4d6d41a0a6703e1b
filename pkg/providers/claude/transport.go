package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	defaultTimeout   = 120 * time.Second
)

// transport sends Messages API requests to wherever Claude is hosted
type transport interface {
	name() string
	send(ctx context.Context, req *messagesRequest) (*aimessage.ClaudeResponse, error)
	stream(ctx context.Context, req *messagesRequest, yield func(string) bool) error
	listModels(ctx context.Context) ([]string, error)
}

// httpTransport talks to the Anthropic API directly
type httpTransport struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newHTTPTransport(apiKey, baseURL string, timeout time.Duration) *httpTransport {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpTransport{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

func (t *httpTransport) name() string { return aimessage.ProviderClaude }

func (t *httpTransport) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	if !strings.HasPrefix(url, "http") {
		url = t.baseURL + url
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")
	return req, nil
}

// do sends the request and returns the response when its status is 200
func (t *httpTransport) do(req *http.Request) (*http.Response, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claude: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

func (t *httpTransport) getJSON(ctx context.Context, url string, out any) error {
	req, err := t.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("claude: decoding response: %w", err)
	}
	return nil
}

func (t *httpTransport) postJSON(ctx context.Context, url string, body, out any) error {
	req, err := t.newRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	resp, err := t.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("claude: decoding response: %w", err)
	}
	return nil
}

func (t *httpTransport) send(ctx context.Context, body *messagesRequest) (*aimessage.ClaudeResponse, error) {
	body.Stream = false
	var out aimessage.ClaudeResponse
	if err := t.postJSON(ctx, "/v1/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *httpTransport) stream(ctx context.Context, body *messagesRequest, yield func(string) bool) error {
	body.Stream = true
	req, err := t.newRequest(ctx, http.MethodPost, "/v1/messages", body)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "text/event-stream")

	resp, err := t.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := newSSEReader(resp.Body)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claude: reading stream: %w", err)
		}
		if event.Data == sseDone {
			return nil
		}

		text, done, err := decodeStreamEvent([]byte(event.Data))
		if err != nil {
			return llm.NewAPIError(t.name(), 0, err.Error())
		}
		if text != "" && !yield(text) {
			return nil
		}
		if done {
			return nil
		}
	}
}

func (t *httpTransport) listModels(ctx context.Context) ([]string, error) {
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.getJSON(ctx, "/v1/models", &out); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// errorFromResponse turns a non-200 response into an *llm.Error. Anthropic
// errors look like {"type":"error","error":{"type":"...","message":"..."}}.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}

	apiErr := llm.NewAPIError(aimessage.ProviderClaude, resp.StatusCode, message)
	if payload.Error.Type != "" {
		apiErr.Type = payload.Error.Type
	}
	return apiErr
}
