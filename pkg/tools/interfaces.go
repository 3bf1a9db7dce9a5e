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
package tools

import (
	"context"

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
)

type Tool interface {
	// Name is the identifier for the tool; we pass this to the LLM.
	// The LLM uses this name when it wants to invoke the tool, so it must be the same for every provider.
	Name() string

	// StatusLabel is the short progress text shown to the user while the tool runs.
	StatusLabel() string

	// FunctionDefinition provides the full schema for the parameters to be used when invoking the tool.
	// It is rebuilt for every dispatch, so descriptions may embed live data from the snapshot.
	FunctionDefinition(snapshot catalog.Snapshot) *gollm.FunctionDefinition

	// Run invokes the tool against the given snapshot; it must not modify the snapshot.
	Run(ctx context.Context, args map[string]any, snapshot catalog.Snapshot) (string, error)
}
