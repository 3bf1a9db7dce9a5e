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

package gollm

import (
	"os"
	"strings"
)

// CredentialSource is one place an API key may come from.
type CredentialSource interface {
	// Lookup returns the key and whether this source holds a non-empty one.
	Lookup() (string, bool)

	// String names the source for logs; it never includes the key.
	String() string
}

// StaticCredential is a key given explicitly, e.g. on the command line.
type StaticCredential string

func (c StaticCredential) Lookup() (string, bool) {
	key := strings.TrimSpace(string(c))
	return key, key != ""
}

func (c StaticCredential) String() string {
	return "explicit"
}

// EnvCredential reads the key from the named environment variable.
type EnvCredential string

func (c EnvCredential) Lookup() (string, bool) {
	key := strings.TrimSpace(os.Getenv(string(c)))
	return key, key != ""
}

func (c EnvCredential) String() string {
	return "env:" + string(c)
}

// ResolveCredential returns the first non-empty key along with the source it came from.
// If no source holds a key it returns "" and a nil source.
func ResolveCredential(sources ...CredentialSource) (string, CredentialSource) {
	for _, source := range sources {
		if source == nil {
			continue
		}
		if key, ok := source.Lookup(); ok {
			return key, source
		}
	}
	return "", nil
}
