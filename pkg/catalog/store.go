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

import (
	"slices"
	"sync"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

// Snapshot is a read-only view of the business data at one point in time.
// Callers must not modify the slices it holds.
type Snapshot struct {
	Products []api.Product `json:"products,omitempty"`
	Orders   []api.Order   `json:"orders,omitempty"`
	Policies []api.Policy  `json:"policies,omitempty"`
}

// PolicyTopics returns the topics of all policies, in order.
func (s Snapshot) PolicyTopics() []string {
	topics := make([]string, 0, len(s.Policies))
	for _, p := range s.Policies {
		topics = append(topics, p.Topic)
	}
	return topics
}

// Store holds the current snapshot of products, orders and policies.
// Updates replace a whole table at once; a Snapshot taken earlier is never
// affected by a later update.
type Store struct {
	mu       sync.RWMutex
	products []api.Product
	orders   []api.Order
	policies []api.Policy
}

// NewStore creates a store holding a copy of the given snapshot.
func NewStore(initial Snapshot) *Store {
	return &Store{
		products: slices.Clone(initial.Products),
		orders:   slices.Clone(initial.Orders),
		policies: slices.Clone(initial.Policies),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Products: s.products,
		Orders:   s.orders,
		Policies: s.policies,
	}
}

// ReplacePolicies swaps in a new policy set.
func (s *Store) ReplacePolicies(policies []api.Policy) {
	policies = slices.Clone(policies)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = policies
}

// ReplaceProducts swaps in a new product catalog.
func (s *Store) ReplaceProducts(products []api.Product) {
	products = slices.Clone(products)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

// ReplaceOrders swaps in a new order book.
func (s *Store) ReplaceOrders(orders []api.Order) {
	orders = slices.Clone(orders)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
}
