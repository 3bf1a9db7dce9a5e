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
package journal

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestFileRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	recorder, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder() error = %v", err)
	}

	ctx := ContextWithTurnID(context.Background(), "turn-1")
	writes := []*Event{
		NewEvent(ctx, ActionUserTurn, map[string]any{"text": "有耳机吗？"}),
		NewEvent(ctx, ActionToolRequest, map[string]any{"name": "searchProducts", "arguments": map[string]any{"query": "耳机"}}),
		NewEvent(ctx, ActionToolResponse, map[string]any{"response": "未找到匹配该查询的商品。"}),
	}
	for _, ev := range writes {
		if err := recorder.Write(ctx, ev); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := ParseEventsFromFile(path)
	if err != nil {
		t.Fatalf("ParseEventsFromFile() error = %v", err)
	}
	if len(events) != len(writes) {
		t.Fatalf("got %d events, want %d", len(events), len(writes))
	}
	for i, ev := range events {
		if ev.Action != writes[i].Action {
			t.Errorf("events[%d].Action = %q, want %q", i, ev.Action, writes[i].Action)
		}
		if ev.TurnID != "turn-1" {
			t.Errorf("events[%d].TurnID = %q", i, ev.TurnID)
		}
	}

	payload, ok := events[2].Payload.(map[string]any)
	if !ok || payload["response"] != "未找到匹配该查询的商品。" {
		t.Errorf("unexpected payload %#v", events[2].Payload)
	}
	if got := FilterEvents(events, ActionToolRequest); len(got) != 1 {
		t.Errorf("FilterEvents() returned %d events, want 1", len(got))
	}
}

func TestParseEventsSkipsBlankDocuments(t *testing.T) {
	input := "action: user-turn\n\n---\n\n\n---\n\naction: llm-request\n\n---\n\n"
	events, err := ParseEvents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseEvents() error = %v", err)
	}
	var actions []string
	for _, ev := range events {
		actions = append(actions, ev.Action)
	}
	if want := []string{ActionUserTurn, ActionLLMRequest}; !slices.Equal(actions, want) {
		t.Errorf("actions = %v, want %v", actions, want)
	}
}

func TestRecorderFromContext(t *testing.T) {
	if _, ok := RecorderFromContext(context.Background()).(*LogRecorder); !ok {
		t.Error("expected the log recorder when none is configured")
	}

	mem := &MemoryRecorder{}
	ctx := ContextWithRecorder(context.Background(), mem)
	if err := RecorderFromContext(ctx).Write(ctx, NewEvent(ctx, ActionConfigError, nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := mem.Actions(); !slices.Equal(got, []string{ActionConfigError}) {
		t.Errorf("Actions() = %v", got)
	}
}
