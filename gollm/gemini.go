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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
	"k8s.io/klog/v2"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

const DefaultGeminiModel = "gemini-2.5-flash"

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

func init() {
	if err := RegisterProvider("gemini", newGeminiProviderFactory, "GEMINI_API_KEY", "API_KEY"); err != nil {
		klog.Fatalf("Failed to register gemini provider: %v", err)
	}
}

func newGeminiProviderFactory(ctx context.Context, opts ClientOptions) (Provider, error) {
	return NewGeminiProvider(ctx, opts)
}

// GeminiProvider speaks the Gemini content-parts protocol.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ Provider = &GeminiProvider{}

// NewGeminiProvider builds a client for the Gemini API.
func NewGeminiProvider(ctx context.Context, opts ClientOptions) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("creating gemini provider: %w", ErrMissingCredential)
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.httpClient(),
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) ResultMatching() ResultMatching {
	return MatchByPosition
}

func (p *GeminiProvider) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	log := klog.FromContext(ctx)

	contents := toGeminiContents(req.History)
	config := &genai.GenerateContentConfig{
		Tools: p.declareTools(req.Functions),
	}
	// The protocol has no system role, so the instruction rides along on every call.
	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}

	log.V(1).Info("Sending request to Gemini API", "model", p.model, "contents", len(contents), "tools", len(req.Functions))
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", toGeminiAPIError(err))
	}

	resp, err := fromGeminiResponse(result)
	if err != nil {
		return nil, err
	}
	if resp.Usage != nil {
		log.Info("Token usage", "provider", p.Name(),
			"prompt", resp.Usage.PromptTokens,
			"completion", resp.Usage.CompletionTokens,
			"total", resp.Usage.TotalTokens)
	}
	return resp, nil
}

// declareTools converts the generic function definitions to a Gemini tool.
func (p *GeminiProvider) declareTools(defs []*FunctionDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  toGeminiSchema(def.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiContents translates the history into contents.
// Consecutive tool results are batched into one user content, in call order;
// that order is what pairs each functionResponse with its functionCall.
func toGeminiContents(turns []*api.Turn) []*genai.Content {
	var contents []*genai.Content
	var pendingResults *genai.Content

	for _, turn := range turns {
		if turn.Kind != api.TurnKindToolResult {
			pendingResults = nil
		}

		switch turn.Kind {
		case api.TurnKindUser:
			contents = append(contents, &genai.Content{
				Role:  geminiRoleUser,
				Parts: []*genai.Part{{Text: turn.Text}},
			})

		case api.TurnKindModel:
			var parts []*genai.Part
			if turn.Text != "" {
				parts = append(parts, &genai.Part{Text: turn.Text})
			}
			for _, call := range turn.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Name,
						Args: call.Arguments(),
					},
					// thinking models reject a function call resent without its signature
					ThoughtSignature: call.Signature,
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: geminiRoleModel, Parts: parts})

		case api.TurnKindToolResult:
			if pendingResults == nil {
				pendingResults = &genai.Content{Role: geminiRoleUser}
				contents = append(contents, pendingResults)
			}
			pendingResults.Parts = append(pendingResults.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       turn.ToolCallID,
					Name:     turn.ToolName,
					Response: map[string]any{"result": turn.Text},
				},
			})

		default:
			klog.Warningf("skipping history entry of unknown kind %q", turn.Kind)
		}
	}
	return contents
}

func fromGeminiResponse(result *genai.GenerateContentResponse) (*DispatchResponse, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini generate content: %w", ErrEmptyResponse)
	}

	resp := &DispatchResponse{Raw: result}
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			raw, err := json.Marshal(args)
			if err != nil {
				klog.Warningf("encoding arguments of function call %q: %v", fc.Name, err)
				raw = []byte("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, api.ToolCall{
				ID:           fc.ID,
				Name:         fc.Name,
				RawArguments: string(raw),
				Signature:    part.ThoughtSignature,
			})
		}
	}
	resp.Text = text.String()

	if md := result.UsageMetadata; md != nil {
		resp.Usage = &Usage{
			PromptTokens:     int64(md.PromptTokenCount),
			CompletionTokens: int64(md.CandidatesTokenCount),
			TotalTokens:      int64(md.TotalTokenCount),
		}
	}
	return resp, nil
}

func toGeminiSchema(schema *Schema) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{
		Description: schema.Description,
		Required:    append([]string(nil), schema.Required...),
	}
	switch schema.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeString:
		out.Type = genai.TypeString
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeInteger:
		out.Type = genai.TypeInteger
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	default:
		klog.Warningf("Unknown schema type %q, defaulting to object", schema.Type)
		out.Type = genai.TypeObject
	}
	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	if schema.Items != nil {
		out.Items = toGeminiSchema(schema.Items)
	}
	return out
}

func toGeminiAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &APIError{Message: err.Error(), Err: err}
}
