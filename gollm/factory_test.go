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
	"slices"
	"testing"
)

func TestResolveCredential(t *testing.T) {
	tests := []struct {
		name       string
		explicit   string
		env        map[string]string
		wantKey    string
		wantSource string
	}{
		{
			name:       "explicit wins",
			explicit:   "from-flag",
			env:        map[string]string{"DEEPSEEK_API_KEY": "provider", "API_KEY": "generic"},
			wantKey:    "from-flag",
			wantSource: "explicit",
		},
		{
			name:       "provider variable before generic",
			env:        map[string]string{"DEEPSEEK_API_KEY": "provider", "API_KEY": "generic"},
			wantKey:    "provider",
			wantSource: "env:DEEPSEEK_API_KEY",
		},
		{
			name:       "generic fallback",
			env:        map[string]string{"DEEPSEEK_API_KEY": "", "API_KEY": "generic"},
			wantKey:    "generic",
			wantSource: "env:API_KEY",
		},
		{
			name:     "whitespace only is missing",
			explicit: "   ",
			env:      map[string]string{"DEEPSEEK_API_KEY": " ", "API_KEY": ""},
		},
		{
			name:       "value is trimmed",
			env:        map[string]string{"DEEPSEEK_API_KEY": "  padded\n", "API_KEY": ""},
			wantKey:    "padded",
			wantSource: "env:DEEPSEEK_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			sources, err := CredentialSources("deepseek", tt.explicit)
			if err != nil {
				t.Fatalf("CredentialSources() error = %v", err)
			}

			key, source := ResolveCredential(sources...)
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if tt.wantSource == "" {
				if source != nil {
					t.Errorf("expected no source, got %s", source)
				}
				return
			}
			if source == nil || source.String() != tt.wantSource {
				t.Errorf("source = %v, want %s", source, tt.wantSource)
			}
		})
	}
}

func TestCredentialSourcesPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     []string
	}{
		{provider: "deepseek", want: []string{"explicit", "env:DEEPSEEK_API_KEY", "env:API_KEY"}},
		{provider: "gemini", want: []string{"explicit", "env:GEMINI_API_KEY", "env:API_KEY"}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			sources, err := CredentialSources(tt.provider, "")
			if err != nil {
				t.Fatalf("CredentialSources() error = %v", err)
			}
			var got []string
			for _, s := range sources {
				got = append(got, s.String())
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("sources = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := CredentialSources("claude", ""); err == nil {
		t.Error("expected an error for an unregistered provider")
	}
}

func TestProviders(t *testing.T) {
	got := Providers()
	for _, want := range []string{"deepseek", "gemini"} {
		if !slices.Contains(got, want) {
			t.Errorf("Providers() = %v, missing %q", got, want)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("Providers() = %v, want sorted", got)
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	if _, err := NewProvider(ctx, "unknown"); err == nil {
		t.Error("expected an error for an unknown provider")
	}

	if _, err := NewProvider(ctx, "deepseek"); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}

	p, err := NewProvider(ctx, "DeepSeek", WithAPIKey("k"), WithModel("deepseek-reasoner"))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "deepseek" || p.Model() != "deepseek-reasoner" {
		t.Errorf("unexpected provider %s/%s", p.Name(), p.Model())
	}
	if p.ResultMatching() != MatchByID {
		t.Errorf("ResultMatching() = %v, want %v", p.ResultMatching(), MatchByID)
	}
}

func TestRegisterProviderTwice(t *testing.T) {
	var r registry
	factory := func(ctx context.Context, opts ClientOptions) (Provider, error) { return nil, nil }
	if err := r.RegisterProvider("fake", factory); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.RegisterProvider("fake", factory); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&APIError{StatusCode: 429, Message: "rate limited", Err: inner})
	if !errors.Is(err, inner) {
		t.Error("APIError should unwrap to the original error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Errorf("errors.As failed: %v", err)
	}
}
