// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gollm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"k8s.io/klog/v2"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultDeepSeekModel   = "deepseek-chat"
)

func init() {
	// "openai" and "openai-compatible" are aliases; all three share the DeepSeek credential chain.
	for _, id := range []string{"deepseek", "openai", "openai-compatible"} {
		if err := RegisterProvider(id, newOpenAIProviderFactory, "DEEPSEEK_API_KEY", "API_KEY"); err != nil {
			klog.Fatalf("Failed to register %s provider: %v", id, err)
		}
	}
}

func newOpenAIProviderFactory(ctx context.Context, opts ClientOptions) (Provider, error) {
	return NewOpenAIProvider(ctx, opts)
}

// OpenAIProvider speaks the OpenAI chat-completions protocol. It defaults to DeepSeek.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

var _ Provider = &OpenAIProvider{}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
// The SDK's own retries are disabled: a failed dispatch is reported once.
func NewOpenAIProvider(ctx context.Context, opts ClientOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("creating deepseek provider: %w", ErrMissingCredential)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultDeepSeekModel
	}

	klog.FromContext(ctx).V(1).Info("Creating OpenAI-style provider", "baseURL", baseURL, "model", model)

	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(opts.APIKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(opts.httpClient()),
			option.WithMaxRetries(0),
		),
		model: model,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "deepseek"
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) ResultMatching() ResultMatching {
	return MatchByID
}

func (p *OpenAIProvider) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	log := klog.FromContext(ctx)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: toOpenAIMessages(req.SystemInstruction, req.History),
	}
	if tools := p.declareTools(req.Functions); len(tools) > 0 {
		params.Tools = tools
	}

	log.V(1).Info("Sending request to OpenAI-style chat API", "model", p.model, "messages", len(params.Messages), "tools", len(params.Tools))
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("deepseek chat completion failed: %w", toAPIError(err))
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("deepseek chat completion %q: %w", completion.ID, ErrEmptyResponse)
	}
	msg := completion.Choices[0].Message

	resp := &DispatchResponse{
		Text: msg.Content,
		Raw:  completion,
		Usage: &Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, api.ToolCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
		})
	}

	log.Info("Token usage", "provider", p.Name(),
		"prompt", resp.Usage.PromptTokens,
		"completion", resp.Usage.CompletionTokens,
		"total", resp.Usage.TotalTokens)
	log.V(2).Info("Received response from OpenAI-style chat API", "id", completion.ID, "finishReason", completion.Choices[0].FinishReason, "toolCalls", len(resp.ToolCalls))
	return resp, nil
}

// declareTools converts the generic function definitions to chat-completions tools.
func (p *OpenAIProvider) declareTools(defs []*FunctionDefinition) []openai.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(toOpenAISchema(def.Parameters)),
			},
		})
	}
	return tools
}

// toOpenAIMessages translates the history. The system instruction always leads.
func toOpenAIMessages(systemInstruction string, turns []*api.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if systemInstruction != "" {
		messages = append(messages, openai.SystemMessage(systemInstruction))
	}

	for _, turn := range turns {
		switch turn.Kind {
		case api.TurnKindUser:
			messages = append(messages, openai.UserMessage(turn.Text))

		case api.TurnKindToolResult:
			messages = append(messages, openai.ToolMessage(turn.Text, turn.ToolCallID))

		case api.TurnKindModel:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if turn.Text != "" {
				assistant.Content.OfString = openai.String(turn.Text)
			}
			for _, call := range turn.ToolCalls {
				arguments := call.RawArguments
				if arguments == "" {
					arguments = "{}"
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: arguments,
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		default:
			klog.Warningf("skipping history entry of unknown kind %q", turn.Kind)
		}
	}
	return messages
}

// toOpenAISchema renders a Schema as a JSON-schema map.
// Object schemas always carry a properties map and arrays always carry items,
// since the chat-completions endpoint rejects them otherwise.
func toOpenAISchema(schema *Schema) map[string]any {
	if schema == nil {
		return map[string]any{
			"type":       string(TypeObject),
			"properties": map[string]any{},
		}
	}

	out := map[string]any{}
	if schema.Description != "" {
		out["description"] = schema.Description
	}

	switch schema.Type {
	case TypeObject:
		out["type"] = string(TypeObject)
		properties := map[string]any{}
		for name, prop := range schema.Properties {
			properties[name] = toOpenAISchema(prop)
		}
		out["properties"] = properties
		if len(schema.Required) > 0 {
			out["required"] = append([]string(nil), schema.Required...)
		}

	case TypeArray:
		out["type"] = string(TypeArray)
		if schema.Items != nil {
			out["items"] = toOpenAISchema(schema.Items)
		} else {
			out["items"] = map[string]any{"type": string(TypeString)}
		}

	case TypeString, TypeNumber, TypeInteger, TypeBoolean:
		out["type"] = string(schema.Type)

	default:
		klog.Warningf("Unknown schema type %q, defaulting to object", schema.Type)
		out["type"] = string(TypeObject)
		out["properties"] = map[string]any{}
	}
	return out
}

func toAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &APIError{Message: err.Error(), Err: err}
}
