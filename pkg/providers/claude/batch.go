package claude

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

const defaultBatchPollInterval = 10 * time.Second

// batchTransport is implemented by transports with a native batch API
type batchTransport interface {
	submitBatch(ctx context.Context, reqs []batchRequest) (*batchStatus, error)
	getBatch(ctx context.Context, id string) (*batchStatus, error)
	batchResults(ctx context.Context, url string) ([]batchResult, error)
}

type batchRequest struct {
	CustomID string           `json:"custom_id"`
	Params   *messagesRequest `json:"params"`
}

type batchStatus struct {
	ID               string `json:"id"`
	ProcessingStatus string `json:"processing_status"`
	ResultsURL       string `json:"results_url"`
	RequestCounts    struct {
		Processing int `json:"processing"`
		Succeeded  int `json:"succeeded"`
		Errored    int `json:"errored"`
		Canceled   int `json:"canceled"`
		Expired    int `json:"expired"`
	} `json:"request_counts"`
}

type batchResult struct {
	CustomID string `json:"custom_id"`
	Result   struct {
		Type    string                    `json:"type"` // succeeded, errored, canceled or expired
		Message *aimessage.ClaudeResponse `json:"message"`
		Error   json.RawMessage           `json:"error"`
	} `json:"result"`
}

var errBatchPending = errors.New("batch still processing")

func batchID(i int) string {
	return "req-" + strconv.Itoa(i)
}

func (t *httpTransport) submitBatch(ctx context.Context, reqs []batchRequest) (*batchStatus, error) {
	for _, r := range reqs {
		r.Params.Stream = false
	}
	var status batchStatus
	if err := t.postJSON(ctx, "/v1/messages/batches", map[string]any{"requests": reqs}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (t *httpTransport) getBatch(ctx context.Context, id string) (*batchStatus, error) {
	var status batchStatus
	if err := t.getJSON(ctx, "/v1/messages/batches/"+id, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// batchResults downloads the JSONL results file
func (t *httpTransport) batchResults(ctx context.Context, url string) ([]batchResult, error) {
	req, err := t.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var results []batchResult
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r batchResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("claude: decoding batch result: %w", err)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("claude: reading batch results: %w", err)
	}
	return results, nil
}

// BatchAsk answers independent requests. With the Messages API they are
// submitted as one Message Batch and polled until the batch ends; any result
// that did not succeed fails the whole call. Tools are not offered to
// batched requests. Other transports answer the requests sequentially.
func (c *Client) BatchAsk(ctx context.Context, reqs []llm.AskRequest) ([]*llm.AIMessage, error) {
	bt, ok := c.transport.(batchTransport)
	if !ok {
		return llm.AskSequentially(ctx, reqs, c.Ask)
	}
	if len(reqs) == 0 {
		return []*llm.AIMessage{}, nil
	}

	convs := make([]*llm.ConversationContext, len(reqs))
	batch := make([]batchRequest, len(reqs))
	for i, req := range reqs {
		conv, err := c.PrepareConversationContext(ctx, req)
		if err != nil {
			return nil, err
		}
		convs[i] = conv
		batch[i] = batchRequest{CustomID: batchID(i), Params: c.newRequest(req, conv.SystemPrompt, conv.Messages, false)}
	}

	status, err := bt.submitBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	c.Logger().Debug("batch submitted", "batch_id", status.ID, "requests", len(batch))

	status, err = c.waitForBatch(ctx, bt, status)
	if err != nil {
		return nil, err
	}

	results, err := bt.batchResults(ctx, status.ResultsURL)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]batchResult, len(results))
	for _, r := range results {
		if r.Result.Type != "succeeded" || r.Result.Message == nil {
			return nil, &llm.Error{
				Code:     llm.ErrCodeBatchFailed,
				Message:  fmt.Sprintf("batch %s: request %s %s: %s", status.ID, r.CustomID, r.Result.Type, string(r.Result.Error)),
				Type:     "batch_error",
				Provider: c.Provider(),
			}
		}
		byID[r.CustomID] = r
	}

	messages := make([]*llm.AIMessage, len(reqs))
	for i, req := range reqs {
		r, ok := byID[batchID(i)]
		if !ok {
			return nil, &llm.Error{
				Code:     llm.ErrCodeBatchFailed,
				Message:  fmt.Sprintf("batch %s: no result for %s", status.ID, batchID(i)),
				Type:     "batch_error",
				Provider: c.Provider(),
			}
		}

		meta := aimessage.Meta{
			Input:     req.Prompt,
			Model:     c.modelFor(req),
			Provider:  c.Provider(),
			UserID:    req.UserID,
			SessionID: req.SessionID,
			TurnID:    llm.NewTurnID(),
		}
		text := strings.TrimSpace(r.Result.Message.Text())
		if req.StructuredOutput != nil {
			meta.Output = c.StructuredValue(text, req.StructuredOutput)
		}
		messages[i], _ = aimessage.FromClaude(r.Result.Message, meta)

		if err := c.UpdateMemory(ctx, convs[i], llm.NewTextMessage(llm.RoleAssistant, text)); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// waitForBatch polls at a fixed interval until the batch has ended
func (c *Client) waitForBatch(ctx context.Context, bt batchTransport, status *batchStatus) (*batchStatus, error) {
	if status.ProcessingStatus == "ended" {
		return status, nil
	}

	id := status.ID
	poll := func() error {
		current, err := bt.getBatch(ctx, id)
		if err != nil {
			var apiErr *llm.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			c.Logger().Debug("batch poll failed", "batch_id", id, "error", err)
			return err
		}
		c.Logger().Debug("batch status", "batch_id", id, "status", current.ProcessingStatus,
			"processing", current.RequestCounts.Processing, "succeeded", current.RequestCounts.Succeeded)
		if current.ProcessingStatus != "ended" {
			return errBatchPending
		}
		status = current
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.batchPollInterval), ctx)
	if err := backoff.Retry(poll, b); err != nil {
		return nil, err
	}
	return status, nil
}
