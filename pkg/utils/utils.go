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

// Package utils holds small, dependency-free helpers shared across the
// engine that don't belong to any one package: file loading (local path
// or remote URL, used by pmFromFile) and random string generation.
package utils

import (
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// OpenFile reads path and returns its contents. A `http://` or `https://`
// path is fetched over the network; anything else is read from the local
// filesystem, matching the `SecRule`/`pmFromFile` grammar where both
// forms are accepted interchangeably.
func OpenFile(path string) ([]byte, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		resp, err := http.Get(path)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(path)
}

var randSrc = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomString returns a random alphanumeric string of length n.
func RandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomAlphabet[randSrc.Intn(len(randomAlphabet))]
	}
	return string(b)
}
