// Copyright 2023 UMH Systems GmbH
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

package models

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// QuantityMap maps a material code to a quantity. Entries are validated at
// the boundary so negative or non-numeric quantities never reach the engine.
type QuantityMap map[string]decimal.Decimal

// Validate rejects empty material codes and negative quantities.
func (q QuantityMap) Validate() error {
	for code, qty := range q {
		if strings.TrimSpace(code) == "" {
			return Validationf("material code must not be empty")
		}
		if qty.IsNegative() {
			return Validationf("quantity for material %s must not be negative, got %s", code, qty)
		}
	}
	return nil
}

// Get returns the quantity for code, zero if absent.
func (q QuantityMap) Get(code string) decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	if v, ok := q[code]; ok {
		return v
	}
	return decimal.Zero
}

// Codes returns the material codes in sorted order for deterministic walks.
func (q QuantityMap) Codes() []string {
	codes := make([]string, 0, len(q))
	for code := range q {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ToJSON marshals the map for jsonb storage. A nil map becomes {} so the
// column never holds SQL NULL.
func (q QuantityMap) ToJSON() (string, error) {
	if q == nil {
		return "{}", nil
	}
	b, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// QuantityMapFromJSON parses a jsonb column value. Empty input yields an
// empty map.
func QuantityMapFromJSON(raw string) (QuantityMap, error) {
	q := QuantityMap{}
	if raw == "" {
		return q, nil
	}
	err := json.Unmarshal([]byte(raw), &q)
	if err != nil {
		return nil, err
	}
	return q, nil
}
