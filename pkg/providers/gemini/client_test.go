package gemini

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
	"github.com/inercia/go-llm-unify/pkg/memory/inmemory"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// fakeModels replays scripted genai responses and records the requests
type fakeModels struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	calls     []generateCall
	err       error

	chunks []*genai.GenerateContentResponse
	images *genai.GenerateImagesResponse
	video  *genai.GenerateVideosOperation
	models []*genai.Model
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: config})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next, nil
}

func (f *fakeModels) GenerateContentStream(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.mu.Lock()
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: config})
	f.mu.Unlock()
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range f.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func (f *fakeModels) GenerateImages(context.Context, string, string, *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	return f.images, f.err
}

func (f *fakeModels) GenerateVideos(context.Context, string, string, *genai.Image, *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return f.video, f.err
}

func (f *fakeModels) List(context.Context, *genai.ListModelsConfig) (genai.Page[genai.Model], error) {
	return genai.Page[genai.Model]{Items: f.models}, f.err
}

func (f *fakeModels) requests() []generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]generateCall(nil), f.calls...)
}

func newTestClient(models *fakeModels, config llm.ClientConfig, opts ...Option) *Client {
	return newClient(aimessage.ProviderGemini, models, nil, nil, config, opts...)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		ModelVersion: "gemini-2.5-flash",
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	}
}

func callsResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return &genai.GenerateContentResponse{
		ModelVersion: "gemini-2.5-flash",
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: genai.RoleModel, Parts: parts},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 20, CandidatesTokenCount: 4, TotalTokenCount: 24},
	}
}

type cityInput struct {
	City string `json:"city" required:"true"`
}

type forecast struct {
	City string `json:"city"`
	Temp int    `json:"temp"`
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := NewClient(llm.ClientConfig{})
	assert.ErrorIs(t, err, &llm.Error{Code: llm.ErrCodeMissingAPIKey})
}

func TestNewVertexClient_MissingProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	_, err := NewVertexClient(llm.ClientConfig{})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrCodeInvalidRequest, llmErr.Code)
	assert.Equal(t, ProviderVertex, llmErr.Provider)
}

func TestAsk_PlainText(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("Hello!")}}
	client := newTestClient(models, llm.ClientConfig{MaxTokens: 64})

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Say hello", SystemPrompt: "Be brief"})
	require.NoError(t, err)

	assert.Equal(t, "Hello!", msg.Output)
	assert.Equal(t, aimessage.ProviderGemini, msg.Provider)
	assert.Equal(t, 15, msg.Usage.TotalTokens)
	assert.NotEmpty(t, msg.TurnID)

	reqs := models.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, string(DefaultModel), reqs[0].model)
	assert.Equal(t, int32(64), reqs[0].config.MaxOutputTokens)
	require.NotNil(t, reqs[0].config.SystemInstruction)
	assert.Equal(t, "Be brief", reqs[0].config.SystemInstruction.Parts[0].Text)
	assert.Empty(t, reqs[0].config.Tools)
}

func TestAsk_ParallelCallsShareOneFollowUp(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{
		callsResponse(
			&genai.FunctionCall{Name: "weather", Args: map[string]any{"city": "Paris"}},
			&genai.FunctionCall{Name: "weather", Args: map[string]any{"city": "Rome"}},
			&genai.FunctionCall{Name: "weather", Args: map[string]any{"city": "Oslo"}},
		),
		textResponse("Paris 20, Rome 25, Oslo 10."),
	}}
	client := newTestClient(models, llm.ClientConfig{})

	// every call waits until all three are running
	var started atomic.Int32
	allStarted := make(chan struct{})
	weather, err := llm.NewTool("weather", "Current temperature of a city", func(ctx context.Context, in cityInput) (forecast, error) {
		if started.Add(1) == 3 {
			close(allStarted)
		}
		select {
		case <-allStarted:
		case <-time.After(2 * time.Second):
			return forecast{}, errors.New("calls did not run concurrently")
		}
		return forecast{City: in.City, Temp: len(in.City)}, nil
	})
	require.NoError(t, err)
	client.RegisterToolDefinition(weather)

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Temperature in Paris, Rome and Oslo?"})
	require.NoError(t, err)

	require.Len(t, msg.ToolCalls, 3)
	ids := map[string]bool{}
	for _, call := range msg.ToolCalls {
		assert.Empty(t, call.Error)
		assert.True(t, strings.HasPrefix(call.ID, "call_"), call.ID)
		ids[call.ID] = true
		assert.Equal(t, msg.ToolCalls[0].ExecutionTime, call.ExecutionTime)
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, 24+15, msg.Usage.TotalTokens)

	reqs := models.requests()
	require.Len(t, reqs, 2)
	require.NotEmpty(t, reqs[0].config.Tools)
	assert.Equal(t, "weather", reqs[0].config.Tools[0].FunctionDeclarations[0].Name)

	contents := reqs[1].contents
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Len(t, contents[1].Parts, 3)
	responses := contents[2]
	assert.Equal(t, genai.RoleUser, responses.Role)
	require.Len(t, responses.Parts, 3)
	for i, part := range responses.Parts {
		require.NotNil(t, part.FunctionResponse)
		assert.Equal(t, msg.ToolCalls[i].ID, part.FunctionResponse.ID)
		assert.Contains(t, part.FunctionResponse.Response, "output")
	}
}

func TestAsk_FailingToolIsReported(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{
		callsResponse(&genai.FunctionCall{ID: "fc-1", Name: "weather", Args: map[string]any{"city": "Atlantis"}}),
		textResponse("I could not find Atlantis."),
	}}
	client := newTestClient(models, llm.ClientConfig{})
	weather, err := llm.NewTool("weather", "Current temperature of a city", func(context.Context, cityInput) (forecast, error) {
		return forecast{}, errors.New("unknown city")
	})
	require.NoError(t, err)
	client.RegisterToolDefinition(weather)

	msg, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Temperature in Atlantis?"})
	require.NoError(t, err)

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "fc-1", msg.ToolCalls[0].ID)
	assert.Equal(t, "unknown city", msg.ToolCalls[0].Error)
	assert.Nil(t, msg.ToolCalls[0].Result)

	response := models.requests()[1].contents[2].Parts[0].FunctionResponse
	assert.Equal(t, map[string]any{"error": "unknown city"}, response.Response)
}

func TestAsk_UnregisteredToolAborts(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{
		callsResponse(&genai.FunctionCall{Name: "missing"}),
	}}
	client := newTestClient(models, llm.ClientConfig{})
	client.RegisterTool("weather", "Current temperature of a city", nil, func(context.Context, map[string]any) (any, error) {
		return "sunny", nil
	})

	_, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "run missing"})
	assert.ErrorIs(t, err, llm.ErrToolNotRegistered)
}

func TestAsk_StructuredOutputUsesResponseSchema(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse(`{"city":"Paris","temp":20}`)}}
	client := newTestClient(models, llm.ClientConfig{})

	msg, err := client.Ask(context.Background(), llm.AskRequest{
		Prompt:           "Weather in Paris as JSON",
		StructuredOutput: llm.NewStructuredOutput(forecast{}),
	})
	require.NoError(t, err)
	assert.Equal(t, forecast{City: "Paris", Temp: 20}, msg.Output)
	assert.True(t, msg.IsStructured())

	cfg := models.requests()[0].config
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
	require.Contains(t, cfg.ResponseSchema.Properties, "temp")
	assert.Equal(t, genai.TypeInteger, cfg.ResponseSchema.Properties["temp"].Type)
	assert.Nil(t, cfg.SystemInstruction)
}

func TestAsk_StructuredOutputWithFunctionsUsesInstructions(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse(`{"city":"Paris","temp":20}`)}}
	client := newTestClient(models, llm.ClientConfig{})
	client.RegisterTool("weather", "Current temperature of a city", nil, func(context.Context, map[string]any) (any, error) {
		return 20, nil
	})

	msg, err := client.Ask(context.Background(), llm.AskRequest{
		Prompt:           "Search the latest news and weather for Paris",
		StructuredOutput: llm.NewStructuredOutput(forecast{}),
	})
	require.NoError(t, err)
	assert.Equal(t, forecast{City: "Paris", Temp: 20}, msg.Output)

	cfg := models.requests()[0].config
	assert.Empty(t, cfg.ResponseMIMEType)
	require.Len(t, cfg.Tools, 1)
	assert.NotEmpty(t, cfg.Tools[0].FunctionDeclarations)
	assert.Nil(t, cfg.Tools[0].GoogleSearch)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Contains(t, cfg.SystemInstruction.Parts[0].Text, "JSON")
}

func TestAsk_SearchPromptGetsGoogleSearch(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("Here are today's headlines.")}}
	client := newTestClient(models, llm.ClientConfig{})

	_, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Search the web for the latest news today"})
	require.NoError(t, err)

	cfg := models.requests()[0].config
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	assert.Empty(t, cfg.Tools[0].FunctionDeclarations)
}

func TestAsk_SearchDisabled(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("ok")}}
	client := newTestClient(models, llm.ClientConfig{}, WithGoogleSearch(false))

	_, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "Search the web for the latest news today"})
	require.NoError(t, err)
	assert.Empty(t, models.requests()[0].config.Tools)
}

func TestAsk_VisionBackfill(t *testing.T) {
	t.Parallel()
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
			{Text: "A red square on a white background.", Thought: true},
		}},
		FinishReason: genai.FinishReasonStop,
	}}}
	models := &fakeModels{responses: []*genai.GenerateContentResponse{resp}}
	client := newTestClient(models, llm.ClientConfig{})

	msg, err := client.Ask(context.Background(), llm.AskRequest{
		Prompt: "What is in this picture?",
		Files:  []llm.Attachment{llm.AttachmentFromBytes([]byte{0x89, 'P', 'N', 'G'}, "square.png", "image/png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "A red square on a white background.", msg.Response)
	assert.Equal(t, "A red square on a white background.", msg.Output)

	parts := models.requests()[0].contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
}

func TestAsk_ErrorIsConverted(t *testing.T) {
	t.Parallel()
	models := &fakeModels{err: genai.APIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"}}
	client := newTestClient(models, llm.ClientConfig{})

	_, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "hi"})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, 429, llmErr.StatusCode)
	assert.Equal(t, "rate_limit_error", llmErr.Type)
	assert.Equal(t, "resource_exhausted", llmErr.Code)
	assert.Equal(t, aimessage.ProviderGemini, llmErr.Provider)
}

func TestAsk_MemoryAcrossTurns(t *testing.T) {
	t.Parallel()
	memory := inmemory.New()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("Hi Ana!"), textResponse("Your name is Ana.")}}
	client := newTestClient(models, llm.ClientConfig{Memory: memory})

	ctx := context.Background()
	_, err := client.Ask(ctx, llm.AskRequest{Prompt: "I am Ana", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	msg, err := client.Ask(ctx, llm.AskRequest{Prompt: "What is my name?", UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "Your name is Ana.", msg.Output)

	contents := models.requests()[1].contents
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "Hi Ana!", contents[1].Parts[0].Text)

	session, err := memory.GetSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, session.Messages, 4)
}

func TestAskStream(t *testing.T) {
	t.Parallel()
	memory := inmemory.New()
	models := &fakeModels{chunks: []*genai.GenerateContentResponse{textResponse("Once "), textResponse("upon "), textResponse("a time")}}
	client := newTestClient(models, llm.ClientConfig{Memory: memory})
	client.RegisterTool("weather", "Current temperature of a city", nil, func(context.Context, map[string]any) (any, error) {
		return 20, nil
	})

	stream := client.AskStream(context.Background(), llm.AskRequest{Prompt: "Tell a story", UserID: "u", SessionID: "s"})
	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time", text)
	assert.Empty(t, models.requests()[0].config.Tools)

	session, err := memory.GetSession(context.Background(), "u", "s")
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "Once upon a time", session.Messages[1].GetText())
}

func TestAskStream_Error(t *testing.T) {
	t.Parallel()
	models := &fakeModels{chunks: []*genai.GenerateContentResponse{textResponse("partial")}, err: errors.New("connection reset")}
	client := newTestClient(models, llm.ClientConfig{})

	_, err := client.AskStream(context.Background(), llm.AskRequest{Prompt: "Tell a story"}).Collect()
	assert.ErrorContains(t, err, "connection reset")
}

func TestBatchAsk(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("a"), textResponse("b")}}
	client := newTestClient(models, llm.ClientConfig{})

	msgs, err := client.BatchAsk(context.Background(), []llm.AskRequest{{Prompt: "1"}, {Prompt: "2"}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Output)
	assert.Equal(t, "b", msgs[1].Output)
}

func TestListModels(t *testing.T) {
	t.Parallel()
	models := &fakeModels{models: []*genai.Model{{Name: "models/gemini-2.5-flash"}, {Name: "models/gemini-2.5-pro"}}}
	client := newTestClient(models, llm.ClientConfig{})

	names, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro"}, names)
}

func TestGetModelInfo(t *testing.T) {
	t.Parallel()

	info := newTestClient(&fakeModels{}, llm.ClientConfig{Model: "gemini-1.5-pro"}).GetModelInfo()
	assert.Equal(t, 2097152, info.MaxTokens)
	assert.True(t, info.SupportsVision)

	info = newTestClient(&fakeModels{}, llm.ClientConfig{}).GetModelInfo()
	assert.Equal(t, string(DefaultModel), info.Name)
	assert.Equal(t, 1048576, info.MaxTokens)
	assert.True(t, info.SupportsTools)
}

func TestAsk_ModelNames(t *testing.T) {
	t.Parallel()
	models := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("a"), textResponse("b")}}
	client := newTestClient(models, llm.ClientConfig{Model: string(ModelGemini25Pro)})

	_, err := client.Ask(context.Background(), llm.AskRequest{Prompt: "one"})
	require.NoError(t, err)
	_, err = client.Ask(context.Background(), llm.AskRequest{Prompt: "two", Model: "gemini-exp-1206"})
	require.NoError(t, err)

	reqs := models.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "gemini-2.5-pro", reqs[0].model)
	assert.Equal(t, "gemini-exp-1206", reqs[1].model)
	assert.Equal(t, ModelImagen4, DefaultImageModel)
}

func TestAsk_StructuredVisionBackfillKeepsParsedOutput(t *testing.T) {
	t.Parallel()
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
			{Text: `{"city":"Lyon","temp":14}`, Thought: true},
		}},
		FinishReason: genai.FinishReasonStop,
	}}}
	models := &fakeModels{responses: []*genai.GenerateContentResponse{resp, textResponse("cannot tell")}}
	client := newTestClient(models, llm.ClientConfig{})
	photo := llm.AttachmentFromBytes([]byte{0x89, 'P', 'N', 'G'}, "street.png", "image/png")

	msg, err := client.Ask(context.Background(), llm.AskRequest{
		Prompt:           "Which city is this, and how warm is it?",
		Files:            []llm.Attachment{photo},
		StructuredOutput: llm.NewStructuredOutput(forecast{}),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"city":"Lyon","temp":14}`, msg.Response)
	assert.Equal(t, forecast{City: "Lyon", Temp: 14}, msg.Output)
	assert.True(t, msg.IsStructured())

	msg, err = client.Ask(context.Background(), llm.AskRequest{
		Prompt:           "Which city is this?",
		Files:            []llm.Attachment{photo},
		StructuredOutput: llm.NewStructuredOutput(forecast{}),
	})
	require.NoError(t, err)
	assert.Equal(t, "cannot tell", msg.Response)
	assert.Equal(t, msg.Response, msg.Output)
}
