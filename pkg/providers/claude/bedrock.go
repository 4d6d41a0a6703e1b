package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/inercia/go-llm-unify/pkg/aimessage"
	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ProviderBedrock is the provider name of Claude served through AWS Bedrock
const ProviderBedrock = "bedrock"

const defaultRegion = "us-east-1"

// runtimeAPI is the part of the Bedrock runtime client used here
type runtimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// catalogAPI is the part of the Bedrock control-plane client used here
type catalogAPI interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// bedrockTransport invokes Claude models with InvokeModel. The body is the
// Messages API body, with the model id moved to the request.
type bedrockTransport struct {
	runtime runtimeAPI
	catalog catalogAPI
}

func newBedrockTransport(ctx context.Context, config llm.ClientConfig) (*bedrockTransport, error) {
	region := config.ExtraValue("region", config.Lookup("AWS_REGION", "AWS_DEFAULT_REGION"))
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, &llm.Error{
			Code:     "aws_config_error",
			Message:  fmt.Sprintf("failed to load AWS configuration: %v", err),
			Type:     "authentication_error",
			Provider: ProviderBedrock,
		}
	}

	runtime := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if endpoint := config.ExtraValue("bedrock_runtime_endpoint", config.BaseURL); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	catalog := bedrock.NewFromConfig(awsCfg, func(o *bedrock.Options) {
		if endpoint := config.ExtraValue("bedrock_endpoint", ""); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &bedrockTransport{runtime: runtime, catalog: catalog}, nil
}

func (t *bedrockTransport) name() string { return ProviderBedrock }

func bedrockBody(req *messagesRequest) (string, []byte, error) {
	body := *req
	modelID := body.Model
	body.Model = ""
	body.Stream = false
	body.AnthropicVersion = bedrockAnthropicVersion

	data, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encoding request: %w", err)
	}
	return modelID, data, nil
}

func (t *bedrockTransport) send(ctx context.Context, req *messagesRequest) (*aimessage.ClaudeResponse, error) {
	modelID, body, err := bedrockBody(req)
	if err != nil {
		return nil, err
	}

	out, err := t.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, convertBedrockError(err)
	}

	var resp aimessage.ClaudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: decoding response: %w", err)
	}
	if resp.Model == "" {
		resp.Model = modelID
	}
	return &resp, nil
}

func (t *bedrockTransport) stream(ctx context.Context, req *messagesRequest, yield func(string) bool) error {
	modelID, body, err := bedrockBody(req)
	if err != nil {
		return err
	}

	out, err := t.runtime.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return convertBedrockError(err)
	}

	stream := out.GetStream()
	defer stream.Close()

	for event := range stream.Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		text, done, err := decodeStreamEvent(chunk.Value.Bytes)
		if err != nil {
			return llm.NewAPIError(ProviderBedrock, 0, err.Error())
		}
		if text != "" && !yield(text) {
			return nil
		}
		if done {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return convertBedrockError(err)
	}
	return nil
}

// listModels returns the Anthropic foundation models available in the region
func (t *bedrockTransport) listModels(ctx context.Context) ([]string, error) {
	out, err := t.catalog.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{
		ByProvider: aws.String("Anthropic"),
	})
	if err != nil {
		return nil, convertBedrockError(err)
	}
	models := make([]string, 0, len(out.ModelSummaries))
	for _, summary := range out.ModelSummaries {
		models = append(models, aws.ToString(summary.ModelId))
	}
	return models, nil
}

// convertBedrockError maps AWS SDK errors to *llm.Error
func convertBedrockError(err error) error {
	if err == nil {
		return nil
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock: %w", err)
	}

	code := llm.ErrCodeAPI
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "ServiceQuotaExceededException":
		code = "rate_limit_error"
	case "AccessDeniedException", "UnrecognizedClientException":
		code = "authentication_error"
	case "ResourceNotFoundException":
		code = "model_not_found"
	case "ValidationException":
		code = llm.ErrCodeInvalidRequest
	}
	return &llm.Error{
		Code:       code,
		Message:    apiErr.ErrorMessage(),
		Type:       apiErr.ErrorCode(),
		StatusCode: status,
		Provider:   ProviderBedrock,
	}
}
