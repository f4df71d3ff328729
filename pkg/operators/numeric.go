// Copyright 2021 Juan Pablo Tosso
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operators

import (
	"fmt"
	"strconv"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

func compareNumeric(value, arg string) (int, error) {
	// A non-numeric input value compares as 0, so `@eq 0` matches a
	// missing or garbage variable rather than faulting the rule.
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		v = 0
	}
	a, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("operators: argument %q is not numeric: %w", arg, err)
	}
	switch {
	case v < a:
		return -1, nil
	case v > a:
		return 1, nil
	default:
		return 0, nil
	}
}

// Eq implements `@eq`.
func Eq(tx *engine.Transaction, value, arg string) (bool, error) {
	c, err := compareNumeric(value, arg)
	return c == 0, err
}

// Ge implements `@ge`.
func Ge(tx *engine.Transaction, value, arg string) (bool, error) {
	c, err := compareNumeric(value, arg)
	return c >= 0, err
}

// Gt implements `@gt`.
func Gt(tx *engine.Transaction, value, arg string) (bool, error) {
	c, err := compareNumeric(value, arg)
	return c > 0, err
}

// Le implements `@le`.
func Le(tx *engine.Transaction, value, arg string) (bool, error) {
	c, err := compareNumeric(value, arg)
	return c <= 0, err
}

// Lt implements `@lt`.
func Lt(tx *engine.Transaction, value, arg string) (bool, error) {
	c, err := compareNumeric(value, arg)
	return c < 0, err
}
