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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

func TestToGeminiContents(t *testing.T) {
	calls := []api.ToolCall{
		{Name: "searchProducts", RawArguments: `{"query":"耳机"}`},
		{Name: "getStorePolicy", RawArguments: `not json`},
	}
	turns := []*api.Turn{
		api.NewUserTurn("有耳机吗？退货政策是什么？"),
		api.NewModelTurn("", calls),
		api.NewToolResultTurn(calls[0], "[耳机]"),
		api.NewToolResultTurn(calls[1], "30天"),
		api.NewModelTurn("有的。", nil),
		api.NewUserTurn("谢谢"),
	}

	contents := toGeminiContents(turns)
	if len(contents) != 5 {
		t.Fatalf("got %d contents, want 5", len(contents))
	}

	wantRoles := []string{"user", "model", "user", "model", "user"}
	for i, want := range wantRoles {
		if contents[i].Role != want {
			t.Errorf("contents[%d].Role = %q, want %q", i, contents[i].Role, want)
		}
	}

	modelParts := contents[1].Parts
	if len(modelParts) != 2 {
		t.Fatalf("model content has %d parts, want 2", len(modelParts))
	}
	if fc := modelParts[0].FunctionCall; fc == nil || fc.Name != "searchProducts" || fc.Args["query"] != "耳机" {
		t.Errorf("unexpected first function call %+v", modelParts[0].FunctionCall)
	}
	if fc := modelParts[1].FunctionCall; fc == nil || len(fc.Args) != 0 {
		t.Errorf("malformed arguments should become an empty map, got %+v", modelParts[1].FunctionCall)
	}

	results := contents[2].Parts
	if len(results) != 2 {
		t.Fatalf("tool results were not batched: %d parts", len(results))
	}
	for i, want := range []string{"searchProducts", "getStorePolicy"} {
		fr := results[i].FunctionResponse
		if fr == nil || fr.Name != want {
			t.Fatalf("results[%d] = %+v, want response for %s", i, fr, want)
		}
	}
	if results[1].FunctionResponse.Response["result"] != "30天" {
		t.Errorf("unexpected response payload %v", results[1].FunctionResponse.Response)
	}
}

func TestToGeminiContentsSkipsEmptyModelTurn(t *testing.T) {
	contents := toGeminiContents([]*api.Turn{
		api.NewUserTurn("hi"),
		api.NewModelTurn("", nil),
	})
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
}

func TestFromGeminiResponse(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: "我来查一下。"},
					{FunctionCall: &genai.FunctionCall{Name: "getOrderStatus", Args: map[string]any{"orderId": "ORD-1001"}}},
					{FunctionCall: &genai.FunctionCall{Name: "searchProducts"}},
				},
			},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			TotalTokenCount:      14,
		},
	}

	resp, err := fromGeminiResponse(result)
	if err != nil {
		t.Fatalf("fromGeminiResponse() error = %v", err)
	}
	if resp.Text != "我来查一下。" {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "getOrderStatus" || resp.ToolCalls[0].Arguments()["orderId"] != "ORD-1001" {
		t.Errorf("unexpected first call %+v", resp.ToolCalls[0])
	}
	if resp.ToolCalls[1].RawArguments != "{}" {
		t.Errorf("nil args should encode as {}, got %q", resp.ToolCalls[1].RawArguments)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 14 || resp.Usage.CompletionTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestFromGeminiResponseEmpty(t *testing.T) {
	for name, result := range map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"no content":    {Candidates: []*genai.Candidate{{}}},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := fromGeminiResponse(result); !errors.Is(err, ErrEmptyResponse) {
				t.Fatalf("expected ErrEmptyResponse, got %v", err)
			}
		})
	}
}

func TestGeminiDeclareTools(t *testing.T) {
	p := &GeminiProvider{model: DefaultGeminiModel}
	if got := p.declareTools(nil); got != nil {
		t.Errorf("declareTools(nil) = %v, want nil", got)
	}

	tools := p.declareTools([]*FunctionDefinition{{
		Name:        "getStorePolicy",
		Description: "Retrieve store policies. Available topics: 退货政策.",
		Parameters: &Schema{
			Type:       TypeObject,
			Properties: map[string]*Schema{"topic": {Type: TypeString, Description: "The policy topic (退货政策)."}},
			Required:   []string{"topic"},
		},
	}})
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("unexpected tools %+v", tools)
	}
	decl := tools[0].FunctionDeclarations[0]
	if decl.Parameters.Type != genai.TypeObject {
		t.Errorf("parameters type = %v", decl.Parameters.Type)
	}
	topic := decl.Parameters.Properties["topic"]
	if topic == nil || topic.Type != genai.TypeString || topic.Description != "The policy topic (退货政策)." {
		t.Errorf("unexpected topic schema %+v", topic)
	}
	if len(decl.Parameters.Required) != 1 || decl.Parameters.Required[0] != "topic" {
		t.Errorf("required = %v", decl.Parameters.Required)
	}
}

func TestGeminiProviderMetadata(t *testing.T) {
	p, err := NewGeminiProvider(context.Background(), ClientOptions{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewGeminiProvider() error = %v", err)
	}
	if p.Name() != "gemini" || p.Model() != DefaultGeminiModel {
		t.Errorf("unexpected provider %s/%s", p.Name(), p.Model())
	}
	if p.ResultMatching() != MatchByPosition {
		t.Errorf("ResultMatching() = %v, want %v", p.ResultMatching(), MatchByPosition)
	}

	if _, err := NewGeminiProvider(context.Background(), ClientOptions{}); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestGeminiSignatureRoundTrip(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{
						FunctionCall:     &genai.FunctionCall{Name: "getOrderStatus", Args: map[string]any{"orderId": "ORD-1001"}},
						ThoughtSignature: []byte("sig"),
					},
					{FunctionCall: &genai.FunctionCall{Name: "getStorePolicy", Args: map[string]any{"topic": "退货"}}},
				},
			},
		}},
	}

	resp, err := fromGeminiResponse(result)
	if err != nil {
		t.Fatalf("fromGeminiResponse() error = %v", err)
	}
	if !bytes.Equal(resp.ToolCalls[0].Signature, []byte("sig")) {
		t.Fatalf("Signature = %q, want %q", resp.ToolCalls[0].Signature, "sig")
	}

	contents := toGeminiContents([]*api.Turn{
		api.NewUserTurn("ORD-1001 到哪了？"),
		api.NewModelTurn(resp.Text, resp.ToolCalls),
		api.NewToolResultTurn(resp.ToolCalls[0], "已发货"),
		api.NewToolResultTurn(resp.ToolCalls[1], "30天"),
	})
	parts := contents[1].Parts
	if len(parts) != 2 {
		t.Fatalf("model content has %d parts, want 2", len(parts))
	}
	if got := string(parts[0].ThoughtSignature); got != "sig" {
		t.Errorf("resent ThoughtSignature = %q, want %q", got, "sig")
	}
	if parts[1].ThoughtSignature != nil {
		t.Errorf("unsigned call was resent with signature %q", parts[1].ThoughtSignature)
	}
}

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewGeminiProvider(context.Background(), ClientOptions{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewGeminiProvider() error = %v", err)
	}
	return p
}

func TestGeminiProviderDispatchToolCalls(t *testing.T) {
	var request map[string]any
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/"+DefaultGeminiModel+":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &request); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{
				"content": {
					"role": "model",
					"parts": [
						{"functionCall": {"name": "searchProducts", "args": {"query": "耳机"}}, "thoughtSignature": "c2ln"},
						{"functionCall": {"name": "getStorePolicy", "args": {"topic": "退货"}}}
					]
				}
			}],
			"usageMetadata": {"promptTokenCount": 20, "candidatesTokenCount": 6, "totalTokenCount": 26}
		}`)
	})

	resp, err := p.Dispatch(context.Background(), &DispatchRequest{
		SystemInstruction: "system prompt",
		History:           []*api.Turn{api.NewUserTurn("有耳机吗？退货政策是什么？")},
		Functions: []*FunctionDefinition{{
			Name:        "searchProducts",
			Description: "Find products available in the store.",
			Parameters: &Schema{
				Type:       TypeObject,
				Properties: map[string]*Schema{"query": {Type: TypeString}},
				Required:   []string{"query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(resp.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(resp.ToolCalls))
	}
	if call := resp.ToolCalls[0]; call.Name != "searchProducts" || call.Arguments()["query"] != "耳机" || string(call.Signature) != "sig" {
		t.Errorf("unexpected first call %+v", call)
	}
	if resp.ToolCalls[1].Name != "getStorePolicy" {
		t.Errorf("unexpected second call %+v", resp.ToolCalls[1])
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 26 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	contents, _ := request["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("sent %d contents, want 1", len(contents))
	}
	if role := contents[0].(map[string]any)["role"]; role != "user" {
		t.Errorf("first content role = %v", role)
	}
	if _, ok := request["systemInstruction"]; !ok {
		t.Error("system instruction was not sent")
	}
	tools, _ := request["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("sent %d tools, want 1", len(tools))
	}
	decls, _ := tools[0].(map[string]any)["functionDeclarations"].([]any)
	if len(decls) != 1 || decls[0].(map[string]any)["name"] != "searchProducts" {
		t.Errorf("unexpected function declarations %v", decls)
	}
}

func TestGeminiProviderDispatchFinalText(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "您好！"}]}}]}`)
	})

	resp, err := p.Dispatch(context.Background(), &DispatchRequest{
		History: []*api.Turn{api.NewUserTurn("hi")},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.Text != "您好！" || len(resp.ToolCalls) != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestGeminiProviderDispatchHTTPError(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error": {"code": 503, "message": "The model is overloaded.", "status": "UNAVAILABLE"}}`)
	})

	_, err := p.Dispatch(context.Background(), &DispatchRequest{
		History: []*api.Turn{api.NewUserTurn("hi")},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "overloaded") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestGeminiProviderDispatchNoCandidates(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": []}`)
	})

	_, err := p.Dispatch(context.Background(), &DispatchRequest{
		History: []*api.Turn{api.NewUserTurn("hi")},
	})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
