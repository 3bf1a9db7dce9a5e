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
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrMissingCredential is returned when a provider is built without an API key.
	ErrMissingCredential = errors.New("no API key configured")

	// ErrEmptyResponse is returned when the provider answers without any candidate content.
	ErrEmptyResponse = errors.New("AI 未返回有效响应")
)

var globalRegistry registry

type registry struct {
	mutex     sync.Mutex
	providers map[string]registration
}

type registration struct {
	factory        FactoryFunc
	credentialEnvs []string
}

// FactoryFunc builds a Provider from resolved options.
type FactoryFunc func(ctx context.Context, opts ClientOptions) (Provider, error)

// RegisterProvider makes a provider available under id.
// credentialEnvs are the environment variables consulted, in order, when no explicit
// API key is given.
func RegisterProvider(id string, factoryFunc FactoryFunc, credentialEnvs ...string) error {
	return globalRegistry.RegisterProvider(id, factoryFunc, credentialEnvs...)
}

func (r *registry) RegisterProvider(id string, factoryFunc FactoryFunc, credentialEnvs ...string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.providers == nil {
		r.providers = make(map[string]registration)
	}
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %q is already registered", id)
	}
	r.providers[id] = registration{
		factory:        factoryFunc,
		credentialEnvs: slices.Clone(credentialEnvs),
	}
	return nil
}

func (r *registry) lookup(providerID string) (registration, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id := strings.ToLower(strings.TrimSuffix(providerID, "://"))
	reg, ok := r.providers[id]
	if !ok {
		return registration{}, fmt.Errorf("provider %q not registered", providerID)
	}
	return reg, nil
}

// Providers returns the registered provider ids, sorted.
func Providers() []string {
	globalRegistry.mutex.Lock()
	defer globalRegistry.mutex.Unlock()

	ids := make([]string, 0, len(globalRegistry.providers))
	for id := range globalRegistry.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CredentialSources returns the ordered credential chain for a provider:
// the explicit key first, then the provider's environment variables.
func CredentialSources(providerID, explicit string) ([]CredentialSource, error) {
	reg, err := globalRegistry.lookup(providerID)
	if err != nil {
		return nil, err
	}
	sources := []CredentialSource{StaticCredential(explicit)}
	for _, env := range reg.credentialEnvs {
		sources = append(sources, EnvCredential(env))
	}
	return sources, nil
}

// NewProvider builds the provider registered under providerID.
func NewProvider(ctx context.Context, providerID string, opts ...Option) (Provider, error) {
	reg, err := globalRegistry.lookup(providerID)
	if err != nil {
		return nil, err
	}

	var options ClientOptions
	for _, opt := range opts {
		opt(&options)
	}
	return reg.factory(ctx, options)
}

// ClientOptions configures a Provider.
type ClientOptions struct {
	APIKey        string
	Model         string
	BaseURL       string
	SkipVerifySSL bool
	HTTPClient    *http.Client
}

// Option is a functional option for NewProvider.
type Option func(*ClientOptions)

func WithAPIKey(key string) Option {
	return func(o *ClientOptions) { o.APIKey = key }
}

func WithModel(model string) Option {
	return func(o *ClientOptions) { o.Model = model }
}

func WithBaseURL(baseURL string) Option {
	return func(o *ClientOptions) { o.BaseURL = baseURL }
}

// WithSkipVerifySSL disables TLS certificate verification towards the provider.
func WithSkipVerifySSL() Option {
	return func(o *ClientOptions) { o.SkipVerifySSL = true }
}

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *ClientOptions) { o.HTTPClient = c }
}

func (o ClientOptions) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return createCustomHTTPClient(o.SkipVerifySSL)
}

func createCustomHTTPClient(skipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport}
}

// APIError represents an error returned by the LLM client.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API Error: Status=%d, Message='%s', OriginalErr=%v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API Error: Status=%d, Message='%s'", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
