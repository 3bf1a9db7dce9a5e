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
	"fmt"
	"os"

	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// LoadFile reads a YAML (or JSON) data file and returns the demo data with
// every section present in the file replaced by the file's contents.
func LoadFile(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading data file %q: %w", path, err)
	}
	return Load(b)
}

// Load parses data in the same format as LoadFile.
func Load(b []byte) (Snapshot, error) {
	var fromFile Snapshot
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return Snapshot{}, fmt.Errorf("parsing data file: %w", err)
	}

	snapshot := Default()
	if fromFile.Products != nil {
		snapshot.Products = fromFile.Products
	}
	if fromFile.Orders != nil {
		snapshot.Orders = fromFile.Orders
	}
	if fromFile.Policies != nil {
		snapshot.Policies = fromFile.Policies
	}
	klog.V(1).InfoS("Loaded catalog data",
		"products", len(snapshot.Products),
		"orders", len(snapshot.Orders),
		"policies", len(snapshot.Policies))
	return snapshot, nil
}
