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
	"fmt"
	"reflect"
	"strings"

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
)

type getStorePolicyArgs struct {
	Topic string `json:"topic"`
}

// GetStorePolicy answers from the knowledge base. A policy matches when its topic
// contains the query or the query contains its topic, ignoring case.
type GetStorePolicy struct{}

func (t *GetStorePolicy) Name() string {
	return "getStorePolicy"
}

func (t *GetStorePolicy) StatusLabel() string {
	return "正在检索服务政策"
}

// FunctionDefinition embeds the current policy topics, so the model only ever sees live ones.
func (t *GetStorePolicy) FunctionDefinition(snapshot catalog.Snapshot) *gollm.FunctionDefinition {
	topics := strings.Join(snapshot.PolicyTopics(), ", ")

	params := gollm.BuildSchemaFor(reflect.TypeOf(getStorePolicyArgs{}))
	params.Properties["topic"].Description = fmt.Sprintf("The policy topic (%s).", topics)

	return &gollm.FunctionDefinition{
		Name:        t.Name(),
		Description: fmt.Sprintf("Retrieve store policies. Available topics: %s.", topics),
		Parameters:  params,
	}
}

func (t *GetStorePolicy) Run(ctx context.Context, args map[string]any, snapshot catalog.Snapshot) (string, error) {
	query, err := stringArg(args, "topic")
	if err != nil {
		return "", err
	}
	query = strings.ToLower(query)

	for _, policy := range snapshot.Policies {
		topic := strings.ToLower(policy.Topic)
		if strings.Contains(topic, query) || strings.Contains(query, topic) {
			return policy.Content, nil
		}
	}
	return PolicyNotFound(snapshot.PolicyTopics()), nil
}

// PolicyNotFound is the result for a topic that matches no policy; it lists the known topics.
func PolicyNotFound(topics []string) string {
	return fmt.Sprintf("未找到该主题的政策详情。目前支持：%s。", strings.Join(topics, "、"))
}
