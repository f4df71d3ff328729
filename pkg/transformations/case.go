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

package transformations

import (
	"strconv"
	"strings"
)

// Lowercase implements `t:lowercase`.
func Lowercase(data string) string { return strings.ToLower(data) }

// Uppercase implements `t:uppercase`.
func Uppercase(data string) string { return strings.ToUpper(data) }

// Length implements `t:length`: replaces the value with its byte length
// as a decimal string, a transformation used to feed a numeric operator
// (`@gt`, `@eq`) with the size of the original value.
func Length(data string) string {
	return strconv.Itoa(len(data))
}
