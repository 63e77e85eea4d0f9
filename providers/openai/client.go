// Package openai implements llm.Client on top of the OpenAI Responses API.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaiapi "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/mlaihq/pesto/llm"
)

type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}

type Client struct {
	api          *openaiapi.Client
	defaultModel string
	timeout      time.Duration
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	api := openaiapi.NewClient(reqOpts...)
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		api:          &api,
		defaultModel: model,
		timeout:      timeout,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c == nil || c.api == nil {
		return llm.Response{}, fmt.Errorf("openai client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(req.Messages) == 0 {
		return llm.Response{}, fmt.Errorf("at least one message is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}

	input := make(responses.ResponseInputParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := responses.EasyInputMessageRoleUser
		switch msg.Role {
		case llm.RoleSystem:
			role = responses.EasyInputMessageRoleSystem
		case llm.RoleAssistant:
			role = responses.EasyInputMessageRoleAssistant
		}
		input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, role))
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if effort := strings.TrimSpace(req.ReasoningEffort); effort != "" {
		params.Reasoning = shared.ReasoningParam{Effort: shared.ReasoningEffort(effort)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	result, err := c.api.Responses.New(callCtx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai responses: %w", err)
	}

	out := llm.Response{Text: strings.TrimSpace(result.OutputText())}
	if result.IncompleteDetails.Reason == "max_output_tokens" {
		out.Truncated = true
	}
	return out, nil
}
