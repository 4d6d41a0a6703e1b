package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ImageRequest asks for generated images
type ImageRequest struct {
	Prompt         string
	Model          string
	Count          int
	AspectRatio    string // "1:1", "16:9", ...
	MimeType       string // "image/png" or "image/jpeg"
	NegativePrompt string
}

// SpeechRequest asks for text to be read aloud
type SpeechRequest struct {
	Text  string
	Model string
	Voice string
}

// VideoRequest asks for a generated video, optionally animating an image
type VideoRequest struct {
	Prompt          string
	Model           string
	Image           *llm.FileContent
	AspectRatio     string
	DurationSeconds int
	NegativePrompt  string
}

var errVideoPending = errors.New("video operation still running")

// mediaMessage wraps generated files in the message shape Ask returns. The
// output is always a []*llm.FileContent.
func (c *Client) mediaMessage(input, model string, files []*llm.FileContent, usage llm.CompletionUsage, raw any) *llm.AIMessage {
	return &llm.AIMessage{
		Input:       input,
		Output:      files,
		Model:       model,
		Provider:    c.Provider(),
		Usage:       usage,
		TurnID:      llm.NewTurnID(),
		CreatedAt:   time.Now().UTC(),
		RawResponse: raw,
	}
}

// GenerateImage generates images from a prompt
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*llm.AIMessage, error) {
	model := req.Model
	if model == "" {
		model = string(DefaultImageModel)
	}
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: safeIntToInt32(max(req.Count, 1)),
		AspectRatio:    req.AspectRatio,
		OutputMIMEType: req.MimeType,
		NegativePrompt: req.NegativePrompt,
	}

	resp, err := c.models.GenerateImages(ctx, model, req.Prompt, cfg)
	if err != nil {
		return nil, convertError(c.Provider(), err)
	}

	var files []*llm.FileContent
	for i, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			if generated != nil && generated.RAIFilteredReason != "" {
				c.Logger().Warn("generated image filtered", "reason", generated.RAIFilteredReason)
			}
			continue
		}
		mimeType := generated.Image.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		files = append(files, llm.NewFileContentFromBytes(generated.Image.ImageBytes, fmt.Sprintf("image-%d%s", i+1, extension(mimeType)), mimeType))
	}
	if len(files) == 0 {
		return nil, llm.NewAPIError(c.Provider(), 0, "no image was generated")
	}
	return c.mediaMessage(req.Prompt, model, files, llm.CompletionUsage{}, resp), nil
}

// GenerateSpeech reads text aloud. Raw PCM returned by the model is
// wrapped in a WAV container.
func (c *Client) GenerateSpeech(ctx context.Context, req SpeechRequest) (*llm.AIMessage, error) {
	model := req.Model
	if model == "" {
		model = string(DefaultSpeechModel)
	}
	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(req.Text), cfg)
	if err != nil {
		return nil, convertError(c.Provider(), err)
	}

	blob := inlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, llm.NewAPIError(c.Provider(), 0, "no audio was generated")
	}
	data, mimeType := blob.Data, blob.MIMEType
	if isPCM(mimeType) {
		data, mimeType = encodeWAV(data, pcmSampleRate(mimeType), 1), "audio/wav"
	}
	file := llm.NewFileContentFromBytes(data, "speech"+extension(mimeType), mimeType)
	return c.mediaMessage(req.Text, model, []*llm.FileContent{file}, aimessage.GeminiUsage(resp), resp), nil
}

func inlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

// GenerateVideo starts a video generation operation and polls it with
// exponential backoff until it completes or the video timeout passes
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*llm.AIMessage, error) {
	model := req.Model
	if model == "" {
		model = string(DefaultVideoModel)
	}
	cfg := &genai.GenerateVideosConfig{
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	}
	if req.DurationSeconds > 0 {
		cfg.DurationSeconds = genai.Ptr(safeIntToInt32(req.DurationSeconds))
	}
	var image *genai.Image
	if req.Image != nil {
		image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MimeType}
	}

	op, err := c.models.GenerateVideos(ctx, model, req.Prompt, image, cfg)
	if err != nil {
		return nil, convertError(c.Provider(), err)
	}
	if op, err = c.waitForVideo(ctx, op); err != nil {
		return nil, err
	}
	if len(op.Error) > 0 {
		return nil, llm.NewAPIError(c.Provider(), 0, fmt.Sprintf("video generation failed: %v", op.Error["message"]))
	}
	if op.Response == nil {
		return nil, llm.NewAPIError(c.Provider(), 0, "no video was generated")
	}

	var files []*llm.FileContent
	for i, generated := range op.Response.GeneratedVideos {
		if generated == nil || generated.Video == nil {
			continue
		}
		data, err := c.videoBytes(ctx, generated.Video)
		if err != nil {
			return nil, err
		}
		mimeType := generated.Video.MIMEType
		if mimeType == "" {
			mimeType = "video/mp4"
		}
		files = append(files, llm.NewFileContentFromBytes(data, fmt.Sprintf("video-%d%s", i+1, extension(mimeType)), mimeType))
	}
	if len(files) == 0 {
		return nil, llm.NewAPIError(c.Provider(), 0, "no video was generated")
	}
	return c.mediaMessage(req.Prompt, model, files, llm.CompletionUsage{}, op), nil
}

func (c *Client) waitForVideo(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	if op == nil {
		return nil, llm.NewAPIError(c.Provider(), 0, "video generation returned no operation")
	}

	poll := func() error {
		if op.Done {
			return nil
		}
		current, err := c.operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			err = convertError(c.Provider(), err)
			var apiErr *llm.Error
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			c.Logger().Debug("video poll failed", "operation", op.Name, "error", err)
			return err
		}
		op = current
		c.Logger().Debug("video operation status", "operation", op.Name, "done", op.Done)
		if !op.Done {
			return errVideoPending
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.videoPollInterval
	b.MaxInterval = 6 * c.videoPollInterval
	b.MaxElapsedTime = c.videoTimeout
	if err := backoff.Retry(poll, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errVideoPending) {
			return nil, llm.NewAPIError(c.Provider(), 0, "timed out waiting for video generation")
		}
		return nil, err
	}
	return op, nil
}

// videoBytes returns the video inline bytes, downloading them when the
// operation only returned a URI
func (c *Client) videoBytes(ctx context.Context, video *genai.Video) ([]byte, error) {
	if len(video.VideoBytes) > 0 {
		return video.VideoBytes, nil
	}
	if video.URI == "" || c.files == nil {
		return nil, llm.NewAPIError(c.Provider(), 0, "generated video has neither data nor a URI")
	}
	data, err := c.files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
	if err != nil {
		return nil, convertError(c.Provider(), err)
	}
	return data, nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	}
	return ""
}
