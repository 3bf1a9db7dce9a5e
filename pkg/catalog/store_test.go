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
	"os"
	"path/filepath"
	"testing"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

func TestStoreReplacePolicies(t *testing.T) {
	store := NewStore(Default())
	before := store.Snapshot()

	replacement := []api.Policy{{Topic: "会员积分", Content: "每消费1元累计1积分。"}}
	store.ReplacePolicies(replacement)
	replacement[0].Content = "changed by caller"

	after := store.Snapshot()
	if len(before.Policies) != 3 {
		t.Errorf("earlier snapshot saw the update: %v", before.Policies)
	}
	if len(after.Policies) != 1 || after.Policies[0].Content != "每消费1元累计1积分。" {
		t.Errorf("unexpected policies after replace: %v", after.Policies)
	}
	if got := after.PolicyTopics(); len(got) != 1 || got[0] != "会员积分" {
		t.Errorf("PolicyTopics() = %v", got)
	}
	if len(after.Products) != 4 || len(after.Orders) != 3 {
		t.Errorf("replacing policies touched other tables: %+v", after)
	}
}

func TestStoreReplaceProductsAndOrders(t *testing.T) {
	store := NewStore(Snapshot{})
	store.ReplaceProducts([]api.Product{{ID: "x", Name: "X"}})
	store.ReplaceOrders([]api.Order{{ID: "ORD-1"}})

	s := store.Snapshot()
	if len(s.Products) != 1 || len(s.Orders) != 1 || len(s.Policies) != 0 {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestLoadFile(t *testing.T) {
	data := `
policies:
- topic: 以旧换新
  content: 旧手机可抵扣最高500元。
orders:
- id: ORD-2001
  customerName: 赵六
  items: [p2]
  status: Returned
`
	path := filepath.Join(t.TempDir(), "data.yaml")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("writing data file: %v", err)
	}

	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(s.Policies) != 1 || s.Policies[0].Topic != "以旧换新" {
		t.Errorf("policies = %+v", s.Policies)
	}
	if len(s.Orders) != 1 || s.Orders[0].Status != api.OrderStatusReturned {
		t.Errorf("orders = %+v", s.Orders)
	}
	if len(s.Products) != len(DefaultProducts()) {
		t.Errorf("products should fall back to the defaults, got %d", len(s.Products))
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
