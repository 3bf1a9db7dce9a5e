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

package catalog

import "github.com/gemini-shop/shop-agent/pkg/api"

// DefaultProducts returns the demo product catalog.
func DefaultProducts() []api.Product {
	return []api.Product{
		{ID: "p1", Name: "Ultra-Comfort 无线降噪耳机", Price: 199.99, Category: "电子产品", Description: "40小时续航的高品质降噪耳机。", Stock: 15},
		{ID: "p2", Name: "智能运动手表 Series 5", Price: 249.00, Category: "电子产品", Description: "带OLED屏幕，支持心率、步数和睡眠监测。", Stock: 8},
		{ID: "p3", Name: "人体工学网眼办公椅", Price: 349.50, Category: "家具", Description: "透气网眼靠背，带腰部支撑。", Stock: 12},
		{ID: "p4", Name: "不锈钢保温水杯 (1L)", Price: 25.00, Category: "生活方式", Description: "环保不锈钢材质，24小时长效保冷。", Stock: 50},
	}
}

// DefaultOrders returns the demo order book.
func DefaultOrders() []api.Order {
	return []api.Order{
		{ID: "ORD-1001", CustomerName: "张三", Items: []string{"p1", "p4"}, Status: api.OrderStatusShipped, EstimatedDelivery: "2023-11-20"},
		{ID: "ORD-1002", CustomerName: "李四", Items: []string{"p2"}, Status: api.OrderStatusProcessing},
		{ID: "ORD-1003", CustomerName: "王五", Items: []string{"p3"}, Status: api.OrderStatusDelivered},
	}
}

// DefaultPolicies returns the demo knowledge base.
func DefaultPolicies() []api.Policy {
	return []api.Policy{
		{Topic: "退货政策", Content: "您可以在购买后30天内退还任何产品。物品必须保留原始包装。"},
		{Topic: "物流配送", Content: "订单满$50免标准运费。特快专递通常需要1-2个工作日。"},
		{Topic: "保修服务", Content: "所有电子产品均享有一年有限制造商保修。"},
	}
}

// Default returns a snapshot holding the demo data.
func Default() Snapshot {
	return Snapshot{
		Products: DefaultProducts(),
		Orders:   DefaultOrders(),
		Policies: DefaultPolicies(),
	}
}
