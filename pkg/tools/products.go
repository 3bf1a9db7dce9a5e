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
	"reflect"
	"strings"

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/api"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
)

// NoProductsFound is returned by searchProducts when nothing matches.
const NoProductsFound = "未找到匹配该查询的商品。"

type searchProductsArgs struct {
	Query string `json:"query" description:"The product name or category to search for."`
}

// SearchProducts finds products whose name or category contains the query, ignoring case.
type SearchProducts struct{}

func (t *SearchProducts) Name() string {
	return "searchProducts"
}

func (t *SearchProducts) StatusLabel() string {
	return "正在搜索商品库"
}

func (t *SearchProducts) FunctionDefinition(catalog.Snapshot) *gollm.FunctionDefinition {
	return &gollm.FunctionDefinition{
		Name:        t.Name(),
		Description: "Find products available in the store.",
		Parameters:  gollm.BuildSchemaFor(reflect.TypeOf(searchProductsArgs{})),
	}
}

func (t *SearchProducts) Run(ctx context.Context, args map[string]any, snapshot catalog.Snapshot) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	query = strings.ToLower(query)

	var matches []api.Product
	for _, p := range snapshot.Products {
		if strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(strings.ToLower(p.Category), query) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return NoProductsFound, nil
	}
	return marshalResult(matches)
}
