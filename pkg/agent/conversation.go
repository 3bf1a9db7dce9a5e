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
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/api"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
	"github.com/gemini-shop/shop-agent/pkg/journal"
	"github.com/gemini-shop/shop-agent/pkg/sessions"
	"github.com/gemini-shop/shop-agent/pkg/tools"
)

const (
	// LoopBudget is the maximum number of dispatches per user turn.
	LoopBudget = 5

	// DefaultToolDelay is the simulated back-end time of one tool call.
	DefaultToolDelay = 500 * time.Millisecond

	// DefaultProviderID is used when Options.ProviderID is empty.
	DefaultProviderID = "deepseek"

	// NoReplyText replaces an empty final answer.
	NoReplyText = "无法生成回复"

	tracerName = "shop-agent/agent"
)

// Options configures a Conversation.
type Options struct {
	// ProviderID selects a registered provider, "deepseek" or "gemini".
	ProviderID string
	// APIKey is the explicit credential. When empty the provider's environment variables are consulted.
	APIKey        string
	Model         string
	BaseURL       string
	SkipVerifySSL bool

	// Provider, when set, is used as is and no credential is resolved.
	Provider gollm.Provider

	// Store holds the business data. Defaults to the demo data.
	Store *catalog.Store
	// Tools defaults to the store tools.
	Tools *tools.Tools

	// Recorder captures events for diagnostics. The conversation closes it on Close.
	Recorder journal.Recorder

	// PromptTemplateFile overrides the embedded system prompt template.
	PromptTemplateFile string

	// ToolDelay is waited before each tool runs. Zero means no delay.
	ToolDelay time.Duration
	// DispatchTimeout bounds each provider call. Zero means no timeout.
	DispatchTimeout time.Duration
}

// Conversation drives the tool-calling loop for one user at a time.
// Its history lives as long as the Conversation; switching providers means building a new one.
type Conversation struct {
	provider gollm.Provider
	// credentialHint names where a key was looked for, used when none was found.
	credentialHint string
	providerID     string

	store    *catalog.Store
	tools    tools.Tools
	history  *sessions.ConversationHistory
	recorder journal.Recorder
	tracer   trace.Tracer

	toolDelay       time.Duration
	dispatchTimeout time.Duration

	mu    sync.Mutex
	state api.AgentState
}

var _ Agent = &Conversation{}

// New builds a Conversation. The credential is resolved once, here; a missing
// credential is not an error, every turn then answers with a configuration message.
func New(ctx context.Context, opts Options) (*Conversation, error) {
	log := klog.FromContext(ctx)

	c := &Conversation{
		provider:        opts.Provider,
		providerID:      opts.ProviderID,
		store:           opts.Store,
		recorder:        opts.Recorder,
		tracer:          otel.Tracer(tracerName),
		toolDelay:       opts.ToolDelay,
		dispatchTimeout: opts.DispatchTimeout,
		state:           api.AgentStateAwaitingUser,
	}
	if c.providerID == "" {
		c.providerID = DefaultProviderID
	}
	if c.store == nil {
		c.store = catalog.NewStore(catalog.Default())
	}
	if opts.Tools != nil {
		c.tools = *opts.Tools
	} else {
		c.tools = tools.Default()
	}
	if c.recorder == nil {
		c.recorder = &journal.LogRecorder{}
	}

	if c.provider == nil {
		sources, err := gollm.CredentialSources(c.providerID, opts.APIKey)
		if err != nil {
			return nil, fmt.Errorf("resolving credential: %w", err)
		}
		key, source := gollm.ResolveCredential(sources...)
		if source == nil {
			var envs []string
			for _, s := range sources {
				if env, ok := s.(gollm.EnvCredential); ok {
					envs = append(envs, string(env))
				}
			}
			c.credentialHint = strings.Join(envs, " 或 ")
			log.Info("No API key found, turns will be answered with a configuration error", "provider", c.providerID, "looked", c.credentialHint)
		} else {
			log.Info("Resolved API key", "provider", c.providerID, "source", source.String(), "length", len(key))

			providerOpts := []gollm.Option{gollm.WithAPIKey(key)}
			if opts.Model != "" {
				providerOpts = append(providerOpts, gollm.WithModel(opts.Model))
			}
			if opts.BaseURL != "" {
				providerOpts = append(providerOpts, gollm.WithBaseURL(opts.BaseURL))
			}
			if opts.SkipVerifySSL {
				providerOpts = append(providerOpts, gollm.WithSkipVerifySSL())
			}
			provider, err := gollm.NewProvider(ctx, c.providerID, providerOpts...)
			if err != nil {
				return nil, fmt.Errorf("creating %s provider: %w", c.providerID, err)
			}
			c.provider = provider
		}
	}

	systemPrompt, err := generatePrompt(ctx, opts.PromptTemplateFile, PromptData{
		Tools:    c.tools,
		Snapshot: c.store.Snapshot(),
	})
	if err != nil {
		return nil, fmt.Errorf("generating system prompt: %w", err)
	}
	c.history = sessions.NewConversationHistory(systemPrompt)

	return c, nil
}

// HandleTurn resolves one user turn. Transport failures are returned as errors;
// a missing credential, tool failures and an exhausted loop budget are not.
func (c *Conversation) HandleTurn(ctx context.Context, userText string, onStatus StatusFunc) (string, error) {
	turnID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "agent.HandleTurn", trace.WithAttributes(attribute.String("turn.id", turnID)))
	defer span.End()

	log := klog.FromContext(ctx).WithValues("turn", turnID)
	ctx = klog.NewContext(ctx, log)
	ctx = journal.ContextWithRecorder(ctx, c.recorder)
	ctx = journal.ContextWithTurnID(ctx, turnID)

	log.Info("Starting turn", "inputLength", len(userText))

	c.history.Append(api.NewUserTurn(userText))
	c.recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionUserTurn, map[string]any{"text": userText}))
	c.setState(api.AgentStateDispatching)

	if c.provider == nil {
		c.setState(api.AgentStateAborted)
		msg := c.configErrorMessage()
		log.Error(gollm.ErrMissingCredential, "Cannot dispatch", "provider", c.providerID)
		c.recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionConfigError, map[string]any{"provider": c.providerID}))
		span.SetStatus(codes.Error, "missing credential")
		return msg, nil
	}

	var lastText string
	for round := 1; round <= LoopBudget; round++ {
		c.setState(api.AgentStateDispatching)
		log.V(1).Info("Dispatching", "round", round)

		resp, err := c.dispatch(ctx, round)
		if err != nil {
			c.setState(api.AgentStateAborted)
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
			return "", err
		}
		lastText = resp.Text

		if len(resp.ToolCalls) == 0 {
			text := resp.Text
			if strings.TrimSpace(text) == "" {
				text = NoReplyText
			}
			c.history.Append(api.NewModelTurn(text, nil))
			c.setState(api.AgentStateDone)
			log.Info("Turn completed", "rounds", round)
			return text, nil
		}

		log.Info("Model requested tools", "round", round, "count", len(resp.ToolCalls))
		c.history.Append(api.NewModelTurn(resp.Text, resp.ToolCalls))
		c.setState(api.AgentStateToolPending)

		if err := c.resolveToolCalls(ctx, resp.ToolCalls, onStatus); err != nil {
			c.setState(api.AgentStateAborted)
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn cancelled")
			return "", err
		}
	}

	klog.Warningf("Loop budget of %d dispatches exhausted without a final answer, ending turn %s", LoopBudget, turnID)
	c.recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionLoopBudgetExceeded, map[string]any{"budget": LoopBudget}))
	span.AddEvent("loop budget exceeded")
	c.setState(api.AgentStateAborted)
	return lastText, nil
}

// dispatch sends the whole history to the provider. Tool declarations are rebuilt
// from the current snapshot every time, so policy changes reach the model.
func (c *Conversation) dispatch(ctx context.Context, round int) (*gollm.DispatchResponse, error) {
	ctx, span := c.tracer.Start(ctx, "agent.Dispatch", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.String("provider", c.provider.Name()),
		attribute.String("model", c.provider.Model()),
	))
	defer span.End()

	snapshot := c.store.Snapshot()
	req := &gollm.DispatchRequest{
		SystemInstruction: c.history.SystemInstruction(),
		History:           c.history.Turns(),
		Functions:         c.tools.FunctionDefinitions(snapshot),
	}

	functionNames := make([]string, 0, len(req.Functions))
	for _, fn := range req.Functions {
		functionNames = append(functionNames, fn.Name)
	}
	c.recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionLLMRequest, gollm.RecordDispatchRequest{
		Provider:     c.provider.Name(),
		Model:        c.provider.Model(),
		Round:        round,
		Turns:        len(req.History),
		Functions:    functionNames,
		PolicyTopics: snapshot.PolicyTopics(),
	}))

	if c.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dispatchTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Dispatch(ctx, req)
	record := gollm.RecordDispatchResponse{Round: round}
	if err != nil {
		record.Error = err.Error()
		c.recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionLLMResponse, record))
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return nil, fmt.Errorf("dispatch round %d to %s: %w", round, c.provider.Name(), err)
	}

	record.Text = resp.Text
	record.ToolCalls = resp.ToolCalls
	record.Usage = resp.Usage
	c.recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionLLMResponse, record))
	klog.FromContext(ctx).V(1).Info("Dispatch returned", "round", round, "duration", time.Since(start), "toolCalls", len(resp.ToolCalls))

	if resp.Usage != nil {
		span.SetAttributes(attribute.Int64("usage.total_tokens", resp.Usage.TotalTokens))
	}
	return resp, nil
}

// resolveToolCalls runs the calls of one dispatch and appends exactly one result per
// call, in call order. Protocols that pair results by id run the calls one after
// another; positional protocols run them concurrently after announcing them all.
// The only error returned is ctx's, once every result has been appended.
func (c *Conversation) resolveToolCalls(ctx context.Context, calls []api.ToolCall, onStatus StatusFunc) error {
	snapshot := c.store.Snapshot()
	results := make([]string, len(calls))

	if c.provider.ResultMatching() == gollm.MatchByPosition {
		for _, call := range calls {
			c.emitStatus(onStatus, call.Name)
		}
		var g errgroup.Group
		for i, call := range calls {
			g.Go(func() error {
				results[i] = c.runTool(ctx, call, snapshot)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, call := range calls {
			c.emitStatus(onStatus, call.Name)
			results[i] = c.runTool(ctx, call, snapshot)
		}
	}

	for i, call := range calls {
		c.history.Append(api.NewToolResultTurn(call, results[i]))
	}
	return ctx.Err()
}

// runTool never fails; errors become the result text so the model can react to them.
func (c *Conversation) runTool(ctx context.Context, call api.ToolCall, snapshot catalog.Snapshot) string {
	ctx, span := c.tracer.Start(ctx, "agent.Tool", trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	log := klog.FromContext(ctx)
	log.V(1).Info("Running tool", "name", call.Name, "arguments", call.RawArguments)

	output, err := c.tools.InvokeTool(ctx, call, snapshot, tools.InvokeToolOptions{Delay: c.toolDelay})
	if err != nil {
		log.Info("Tool failed", "name", call.Name, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool failed")
		return fmt.Sprintf("Error executing tool: %v", err)
	}
	log.V(2).Info("Tool succeeded", "name", call.Name, "resultLength", len(output))
	return output
}

func (c *Conversation) emitStatus(onStatus StatusFunc, toolName string) {
	if onStatus == nil {
		return
	}
	onStatus(c.tools.StatusLabel(toolName) + "...")
}

func (c *Conversation) configErrorMessage() string {
	hint := c.credentialHint
	if hint == "" {
		hint = "API_KEY"
	}
	return fmt.Sprintf("配置错误：未找到 %s 的 API Key。请通过 --api-key 提供，或在环境变量中配置 %s。", c.providerID, hint)
}

// UpdatePolicies replaces the policy set; the next dispatch and tool execution see it.
func (c *Conversation) UpdatePolicies(policies []api.Policy) {
	c.store.ReplacePolicies(policies)
	klog.V(1).InfoS("Updated policies", "count", len(policies))
}

// UpdateProducts replaces the product catalog searched by the next tool execution.
func (c *Conversation) UpdateProducts(products []api.Product) {
	c.store.ReplaceProducts(products)
	klog.V(1).InfoS("Updated products", "count", len(products))
}

// UpdateOrders replaces the order book.
func (c *Conversation) UpdateOrders(orders []api.Order) {
	c.store.ReplaceOrders(orders)
	klog.V(1).InfoS("Updated orders", "count", len(orders))
}

// Store returns the data the tools read from.
func (c *Conversation) Store() *catalog.Store {
	return c.store
}

func (c *Conversation) State() api.AgentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conversation) setState(state api.AgentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// History returns a copy of the conversation so far.
func (c *Conversation) History() []*api.Turn {
	return c.history.Turns()
}

// SystemInstruction is the instruction the history was seeded with.
func (c *Conversation) SystemInstruction() string {
	return c.history.SystemInstruction()
}

// ProviderID is the id of the provider this conversation talks to.
func (c *Conversation) ProviderID() string {
	if c.provider != nil {
		return c.provider.Name()
	}
	return c.providerID
}

func (c *Conversation) Close() error {
	if c.recorder != nil {
		return c.recorder.Close()
	}
	return nil
}
