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
	"io"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

// StatusFunc receives short progress messages while a turn is being resolved.
// It has no way to influence the turn.
type StatusFunc func(status string)

type Agent interface {
	// Close should be called to free up resources
	io.Closer

	// HandleTurn sends the user's text to the model and goes through cycles with it,
	// running requested tools until the model answers or the loop budget is spent.
	// Calls must not overlap.
	HandleTurn(ctx context.Context, userText string, onStatus StatusFunc) (string, error)

	// UpdatePolicies replaces the policy set used from the next tool execution on.
	UpdatePolicies(policies []api.Policy)
}
