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
package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gemini-shop/shop-agent/pkg/agent"
	"github.com/gemini-shop/shop-agent/pkg/api"
)

type fakeAgent struct {
	queries []string
	fail    map[string]error
}

func (f *fakeAgent) HandleTurn(ctx context.Context, userText string, onStatus agent.StatusFunc) (string, error) {
	f.queries = append(f.queries, userText)
	if err := f.fail[userText]; err != nil {
		return "", err
	}
	onStatus("正在搜索商品库...")
	return "找到 **耳机**", nil
}

func (f *fakeAgent) UpdatePolicies([]api.Policy) {}

func (f *fakeAgent) Close() error { return nil }

func TestRunQuery(t *testing.T) {
	var out bytes.Buffer
	u, err := NewTerminalUI(&fakeAgent{}, strings.NewReader(""), &out, false)
	if err != nil {
		t.Fatalf("NewTerminalUI() error = %v", err)
	}
	if err := u.RunQuery(context.Background(), "耳机"); err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}

	got := out.String()
	status := strings.Index(got, "正在搜索商品库...")
	answer := strings.Index(got, "耳机")
	if status < 0 || answer < 0 {
		t.Fatalf("output is missing the status or the answer: %q", got)
	}
	if strings.LastIndex(got, "耳机") < status {
		t.Errorf("answer should follow the status: %q", got)
	}
}

func TestRun(t *testing.T) {
	fake := &fakeAgent{fail: map[string]error{"坏的": errors.New("API Error: Status=500")}}
	var out bytes.Buffer
	in := strings.NewReader("你好\n\n坏的\n还在吗\nexit\n不会被读到\n")

	u, err := NewTerminalUI(fake, in, &out, false)
	if err != nil {
		t.Fatalf("NewTerminalUI() error = %v", err)
	}
	defer u.Close()

	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := []string{"你好", "坏的", "还在吗"}; strings.Join(fake.queries, "|") != strings.Join(want, "|") {
		t.Errorf("queries = %v, want %v", fake.queries, want)
	}
	if !strings.Contains(out.String(), "Status=500") {
		t.Errorf("the transport error should be shown: %q", out.String())
	}
}

func TestRunStopsAtEOF(t *testing.T) {
	fake := &fakeAgent{}
	u, err := NewTerminalUI(fake, strings.NewReader("最后一行"), &bytes.Buffer{}, false)
	if err != nil {
		t.Fatalf("NewTerminalUI() error = %v", err)
	}
	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fake.queries) != 1 || fake.queries[0] != "最后一行" {
		t.Errorf("queries = %v", fake.queries)
	}
}
