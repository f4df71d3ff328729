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

// Package transformations implements the pure string rewriters SecLang's
// `t:*` actions name. Every function takes the current value and returns
// the rewritten one; the VM decides separately whether the output differs
// from the input (see engine.TransformCache).
package transformations

import "github.com/jptosso/coraza-waf/pkg/engine"

// Func is the shape every transformation function has.
type Func func(data string) string

// byKind maps each engine.TransformKind to the function that implements
// it. TNone and TNone2 both resolve to the identity function: `t:none`
// is used to clear an inherited transformation pipeline, not to apply one.
var byKind = map[engine.TransformKind]Func{
	engine.TNone:               identity,
	engine.TNone2:              identity,
	engine.TLowercase:          Lowercase,
	engine.TUppercase:          Uppercase,
	engine.TTrim:               Trim,
	engine.TTrimLeft:           TrimLeft,
	engine.TTrimRight:          TrimRight,
	engine.TCompressWhitespace: CompressWhitespace,
	engine.TRemoveWhitespace:   RemoveWhitespace,
	engine.TRemoveNulls:        RemoveNulls,
	engine.TRemoveComments:     RemoveComments,
	engine.THtmlEntityDecode:   HtmlEntityDecode,
	engine.TJsDecode:           JsDecode,
	engine.TCssDecode:          CssDecode,
	engine.TUrlEncode:          UrlEncode,
	engine.TUrlDecode:          UrlDecode,
	engine.TUrlDecodeUni:       UrlDecodeUni,
	engine.TBase64Encode:       Base64Encode,
	engine.TBase64Decode:       Base64Decode,
	engine.TBase64DecodeExt:    Base64DecodeExt,
	engine.THexEncode:          HexEncode,
	engine.THexDecode:          HexDecode,
	engine.TMd5:                Md5,
	engine.TSha1:               Sha1,
	engine.TNormalizePath:      NormalizePath,
	engine.TNormalizePathWin:   NormalizePathWin,
	engine.TReplaceComments:    ReplaceComments,
	engine.TReplaceNulls:       ReplaceNulls,
	engine.TEscapeSeqDecode:    EscapeSeqDecode,
	engine.TLength:             Length,
	engine.TCmdLine:            CmdLine,
	engine.TSqlHexDecode:       SqlHexDecode,
	engine.TUtf8ToUnicode:      Utf8ToUnicode,
	engine.TRemoveCommentsChar: RemoveCommentsChar,
}

func identity(data string) string { return data }

// Apply runs the transformation named by kind against data. An unknown
// kind is a compiler bug, not a runtime condition, so it falls back to
// identity rather than panicking the transaction.
func Apply(kind engine.TransformKind, data string) string {
	if fn, ok := byKind[kind]; ok {
		return fn(data)
	}
	return data
}
