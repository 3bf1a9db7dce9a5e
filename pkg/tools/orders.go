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

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
)

type getOrderStatusArgs struct {
	OrderID string `json:"orderId" description:"The order ID (e.g., ORD-1001)."`
}

// GetOrderStatus looks an order up by its exact id.
type GetOrderStatus struct{}

func (t *GetOrderStatus) Name() string {
	return "getOrderStatus"
}

func (t *GetOrderStatus) StatusLabel() string {
	return "正在查询订单状态"
}

func (t *GetOrderStatus) FunctionDefinition(catalog.Snapshot) *gollm.FunctionDefinition {
	return &gollm.FunctionDefinition{
		Name:        t.Name(),
		Description: "Retrieve the status and details of an order using its ID.",
		Parameters:  gollm.BuildSchemaFor(reflect.TypeOf(getOrderStatusArgs{})),
	}
}

func (t *GetOrderStatus) Run(ctx context.Context, args map[string]any, snapshot catalog.Snapshot) (string, error) {
	id, err := stringArg(args, "orderId")
	if err != nil {
		return "", err
	}
	for _, order := range snapshot.Orders {
		if order.ID == id {
			return marshalResult(order)
		}
	}
	return OrderNotFound(id), nil
}

// OrderNotFound is the result for an order id that does not exist.
func OrderNotFound(id string) string {
	return fmt.Sprintf("未找到订单 %s。请检查订单号是否正确。", id)
}
