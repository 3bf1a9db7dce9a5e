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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"sigs.k8s.io/yaml"
)

// Actions written by the agent.
const (
	ActionUserTurn           = "user-turn"
	ActionLLMRequest         = "llm-request"
	ActionLLMResponse        = "llm-response"
	ActionToolRequest        = "tool-request"
	ActionToolResponse       = "tool-response"
	ActionLoopBudgetExceeded = "loop-budget-exceeded"
	ActionConfigError        = "config-error"
)

// Recorder is an interface for recording a structured log of the agent's actions and observations.
type Recorder interface {
	io.Closer

	// Write will add an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder writes a structured log of the agent's actions and observations to a file.
// Writes are serialized, tools of one batch may record concurrently.
type FileRecorder struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileRecorder creates a new FileRecorder that writes to the given file.
func NewFileRecorder(path string) (*FileRecorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return &FileRecorder{
		f: file,
	}, nil
}

// Close closes the file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	yamlBytes, err := yaml.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	var b bytes.Buffer
	b.Write(yamlBytes)
	b.Write([]byte("\n\n---\n\n"))

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.f.Write(b.Bytes())
	return err
}

// MemoryRecorder keeps events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *MemoryRecorder) Write(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRecorder) Close() error {
	return nil
}

// Events returns the recorded events in write order.
func (r *MemoryRecorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Actions returns the action of every recorded event, in write order.
func (r *MemoryRecorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		actions = append(actions, ev.Action)
	}
	return actions
}

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// TurnID groups the events of one user turn.
	TurnID  string `json:"turnId,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time and the turn id carried by ctx.
func NewEvent(ctx context.Context, action string, payload any) *Event {
	return &Event{
		Timestamp: time.Now(),
		Action:    action,
		TurnID:    TurnIDFromContext(ctx),
		Payload:   payload,
	}
}
