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
	"regexp"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// VerifyCC implements `@verifyCC`: arg is a regex selecting candidate
// digit runs in value, each validated with the Luhn checksum.
func VerifyCC(tx *engine.Transaction, value, arg string) (bool, error) {
	re, err := compileRx(arg)
	if err != nil {
		return false, err
	}
	for _, candidate := range re.FindAllString(value, -1) {
		if luhnValid(candidate) {
			tx.Captures.StageCapture(0, candidate)
			return true, nil
		}
	}
	return false, nil
}

func luhnValid(digits string) bool {
	sum := 0
	alt := false
	count := 0
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
		count++
	}
	return count >= 12 && sum%10 == 0
}

var ssnPattern = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)

// VerifySSN implements `@verifySSN`: matches a plausible US Social
// Security Number shape (area-group-serial, 000/666/9xx area numbers
// excluded) rather than verifying against SSA-issued ranges.
func VerifySSN(tx *engine.Transaction, value, arg string) (bool, error) {
	if !ssnPattern.MatchString(value) {
		return false, nil
	}
	digits := make([]byte, 0, 9)
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}
	area := string(digits[0:3])
	if area == "000" || area == "666" || digits[0] == '9' {
		return false, nil
	}
	if string(digits[3:5]) == "00" || string(digits[5:9]) == "0000" {
		return false, nil
	}
	tx.Captures.StageCapture(0, value)
	return true, nil
}
