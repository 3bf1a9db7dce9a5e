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
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/gemini-shop/shop-agent/pkg/catalog"
	"github.com/gemini-shop/shop-agent/pkg/tools"
)

//go:embed systemprompt_template_default.txt
var defaultSystemPromptTemplate string

// toolSummaries are the descriptions the system prompt gives for the store tools.
var toolSummaries = map[string]string{
	"searchProducts": "通过名称或类别搜索商品。",
	"getOrderStatus": "使用订单ID查询订单状态和详情。",
	"getStorePolicy": "获取关于退货、配送或保修的政策详情。",
}

// PromptData represents the structure of the data to be filled into the template.
type PromptData struct {
	Tools    tools.Tools
	Snapshot catalog.Snapshot
}

type ToolSummary struct {
	Name    string
	Summary string
}

func (d *PromptData) ToolSummaries() []ToolSummary {
	var out []ToolSummary
	for _, tool := range d.Tools.AllTools() {
		summary, ok := toolSummaries[tool.Name()]
		if !ok {
			summary = tool.FunctionDefinition(d.Snapshot).Description
		}
		out = append(out, ToolSummary{Name: tool.Name(), Summary: summary})
	}
	return out
}

// generatePrompt renders the system instruction from the template file, or the embedded default.
func generatePrompt(_ context.Context, templateFile string, data PromptData) (string, error) {
	promptTemplate := defaultSystemPromptTemplate
	if templateFile != "" {
		content, err := os.ReadFile(templateFile)
		if err != nil {
			return "", fmt.Errorf("reading template file: %w", err)
		}
		promptTemplate = string(content)
	}

	tmpl, err := template.New("promptTemplate").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("building template for prompt: %w", err)
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, &data); err != nil {
		return "", fmt.Errorf("evaluating template for prompt: %w", err)
	}
	return strings.TrimSpace(result.String()), nil
}
