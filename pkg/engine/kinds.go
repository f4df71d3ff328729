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

package engine

// VariableKind names one of the HTTP- or engine-derived collections a rule
// can read from. The full SecLang surface names close to a hundred of
// these; this set covers the ones exercised by a CRS-class ruleset end to
// end (request/response metadata, TX, and the MATCHED_VAR family) and is
// extended the same way for any kind the parser encounters later — see
// DESIGN.md "variable kind coverage".
type VariableKind uint16

const (
	VarUnknown VariableKind = iota
	VarARGS
	VarARGS_GET
	VarARGS_POST
	VarARGS_NAMES
	VarARGS_GET_NAMES
	VarARGS_POST_NAMES
	VarREQUEST_HEADERS
	VarREQUEST_HEADERS_NAMES
	VarREQUEST_COOKIES
	VarREQUEST_COOKIES_NAMES
	VarREQUEST_LINE
	VarREQUEST_METHOD
	VarREQUEST_PROTOCOL
	VarREQUEST_URI
	VarREQUEST_URI_RAW
	VarREQUEST_FILENAME
	VarREQUEST_BODY
	VarQUERY_STRING
	VarREMOTE_ADDR
	VarREMOTE_PORT
	VarRESPONSE_HEADERS
	VarRESPONSE_HEADERS_NAMES
	VarRESPONSE_BODY
	VarRESPONSE_STATUS
	VarTX
	VarRULE
	VarMATCHED_VAR
	VarMATCHED_VAR_NAME
	VarMATCHED_VARS
	VarMATCHED_VARS_NAMES
	VarTIME
	VarTIME_EPOCH
	VarDURATION
	VarENV
	VarFILES
	VarFILES_NAMES
	VarFILES_COMBINED_SIZE
	VarFILES_SIZES
	VarUNIQUE_ID
)

var variableNames = map[string]VariableKind{
	"ARGS": VarARGS, "ARGS_GET": VarARGS_GET, "ARGS_POST": VarARGS_POST,
	"ARGS_NAMES": VarARGS_NAMES, "ARGS_GET_NAMES": VarARGS_GET_NAMES,
	"ARGS_POST_NAMES": VarARGS_POST_NAMES,
	"REQUEST_HEADERS": VarREQUEST_HEADERS, "REQUEST_HEADERS_NAMES": VarREQUEST_HEADERS_NAMES,
	"REQUEST_COOKIES": VarREQUEST_COOKIES, "REQUEST_COOKIES_NAMES": VarREQUEST_COOKIES_NAMES,
	"REQUEST_LINE": VarREQUEST_LINE, "REQUEST_METHOD": VarREQUEST_METHOD,
	"REQUEST_PROTOCOL": VarREQUEST_PROTOCOL, "REQUEST_URI": VarREQUEST_URI,
	"REQUEST_URI_RAW": VarREQUEST_URI_RAW, "REQUEST_FILENAME": VarREQUEST_FILENAME,
	"REQUEST_BODY": VarREQUEST_BODY, "QUERY_STRING": VarQUERY_STRING,
	"REMOTE_ADDR": VarREMOTE_ADDR, "REMOTE_PORT": VarREMOTE_PORT,
	"RESPONSE_HEADERS": VarRESPONSE_HEADERS, "RESPONSE_HEADERS_NAMES": VarRESPONSE_HEADERS_NAMES,
	"RESPONSE_BODY": VarRESPONSE_BODY, "RESPONSE_STATUS": VarRESPONSE_STATUS,
	"TX": VarTX, "RULE": VarRULE,
	"MATCHED_VAR": VarMATCHED_VAR, "MATCHED_VAR_NAME": VarMATCHED_VAR_NAME,
	"MATCHED_VARS": VarMATCHED_VARS, "MATCHED_VARS_NAMES": VarMATCHED_VARS_NAMES,
	"TIME": VarTIME, "TIME_EPOCH": VarTIME_EPOCH, "DURATION": VarDURATION,
	"ENV": VarENV, "FILES": VarFILES, "FILES_NAMES": VarFILES_NAMES,
	"FILES_COMBINED_SIZE": VarFILES_COMBINED_SIZE, "FILES_SIZES": VarFILES_SIZES,
	"UNIQUE_ID": VarUNIQUE_ID,
}

// LookupVariableKind resolves a SecLang variable token (case-insensitive
// callers should upcase first) to its VariableKind, or VarUnknown.
func LookupVariableKind(name string) VariableKind {
	if k, ok := variableNames[name]; ok {
		return k
	}
	return VarUnknown
}

// AddressMode is one of the five ways a variable expression can be
// addressed: whole collection, single subkey, regex-selected subset, or a
// counter over the whole collection or one subkey.
type AddressMode uint8

const (
	ModeVC AddressMode = iota // VAR            -> whole collection
	ModeVS                    // VAR:name       -> single subkey
	ModeVR                    // VAR:/pattern/  -> regex-selected subset
	ModeCC                    // &VAR           -> counter over collection
	ModeCS                    // &VAR:name      -> counter over one subkey
)

// TransformKind names one of the pure string rewriters applied before an
// operator sees a value.
type TransformKind uint16

const (
	TNone TransformKind = iota
	TLowercase
	TUppercase
	TTrim
	TTrimLeft
	TTrimRight
	TCompressWhitespace
	TRemoveWhitespace
	TRemoveNulls
	TRemoveComments
	THtmlEntityDecode
	TJsDecode
	TCssDecode
	TUrlEncode
	TUrlDecode
	TUrlDecodeUni
	TBase64Encode
	TBase64Decode
	TBase64DecodeExt
	THexEncode
	THexDecode
	TMd5
	TSha1
	TNormalizePath
	TNormalizePathWin
	TReplaceComments
	TReplaceNulls
	TEscapeSeqDecode
	TLength
	TCmdLine
	TSqlHexDecode
	TUtf8ToUnicode
	TRemoveCommentsChar
	TNone2 // t:none alias used after a cleared pipeline
)

var transformNames = map[string]TransformKind{
	"none": TNone, "lowercase": TLowercase, "uppercase": TUppercase, "trim": TTrim,
	"trimLeft": TTrimLeft, "trimRight": TTrimRight,
	"compressWhitespace": TCompressWhitespace, "removeWhitespace": TRemoveWhitespace,
	"removeNulls": TRemoveNulls, "removeComments": TRemoveComments,
	"htmlEntityDecode": THtmlEntityDecode, "jsDecode": TJsDecode, "cssDecode": TCssDecode,
	"urlEncode": TUrlEncode, "urlDecode": TUrlDecode, "urlDecodeUni": TUrlDecodeUni,
	"base64Encode": TBase64Encode, "base64Decode": TBase64Decode,
	"base64DecodeExt": TBase64DecodeExt, "hexEncode": THexEncode, "hexDecode": THexDecode,
	"md5": TMd5, "sha1": TSha1, "normalisePath": TNormalizePath, "normalizePath": TNormalizePath,
	"normalisePathWin": TNormalizePathWin, "normalizePathWin": TNormalizePathWin,
	"replaceComments": TReplaceComments, "replaceNulls": TReplaceNulls,
	"escapeSeqDecode": TEscapeSeqDecode, "length": TLength, "cmdLine": TCmdLine,
	"sqlHexDecode": TSqlHexDecode, "utf8toUnicode": TUtf8ToUnicode,
	"removeCommentsChar": TRemoveCommentsChar,
}

// LookupTransformKind resolves a `t:name` token to a TransformKind.
func LookupTransformKind(name string) (TransformKind, bool) {
	k, ok := transformNames[name]
	return k, ok
}

// OperatorKind names one of the boolean predicates an operator evaluates.
type OperatorKind uint16

const (
	OpRX OperatorKind = iota
	OpPM
	OpPMFromFile
	OpStreq
	OpBeginsWith
	OpEndsWith
	OpContains
	OpContainsWord
	OpWithin
	OpEq
	OpGe
	OpGt
	OpLe
	OpLt
	OpIPMatch
	OpValidateByteRange
	OpValidateURLEncoding
	OpDetectSQLi
	OpDetectXSS
	OpUnconditionalMatch
	OpNoMatch
	OpVerifyCC
	OpVerifySSN
	OpGeoLookup
	OpRBL
)

var operatorNames = map[string]OperatorKind{
	"rx": OpRX, "pm": OpPM, "pmFromFile": OpPMFromFile, "streq": OpStreq,
	"beginsWith": OpBeginsWith, "endsWith": OpEndsWith, "contains": OpContains,
	"containsWord": OpContainsWord, "within": OpWithin, "eq": OpEq, "ge": OpGe,
	"gt": OpGt, "le": OpLe, "lt": OpLt, "ipMatch": OpIPMatch,
	"validateByteRange": OpValidateByteRange, "validateUrlEncoding": OpValidateURLEncoding,
	"detectSQLi": OpDetectSQLi, "detectXSS": OpDetectXSS,
	"unconditionalMatch": OpUnconditionalMatch, "noMatch": OpNoMatch,
	"verifyCC": OpVerifyCC, "verifySSN": OpVerifySSN, "geoLookup": OpGeoLookup, "rbl": OpRBL,
}

// LookupOperatorKind resolves an `@name` token to an OperatorKind.
func LookupOperatorKind(name string) (OperatorKind, bool) {
	k, ok := operatorNames[name]
	return k, ok
}

// ActionKind names one of the side-effectful actions a matching rule may
// run.
type ActionKind uint16

const (
	ActSetVar ActionKind = iota
	ActSetEnv
	ActInitCol
	ActSetSID
	ActSetUID
	ActSetRSC
	ActCtl
	ActSkip
	ActSkipAfter
	ActAllow
	ActBlock
	ActDeny
	ActDrop
	ActPass
	ActRedirect
	ActStatus
)

// DisruptiveKind is the disposition a disruptive action requests.
type DisruptiveKind uint8

const (
	DisruptiveNone DisruptiveKind = iota
	DisruptiveAllow
	DisruptiveBlock
	DisruptiveDeny
	DisruptiveDrop
	DisruptivePass
	DisruptiveRedirect
)

// AllowScope distinguishes `allow`, `allow:request`, and `allow:phase`.
type AllowScope uint8

const (
	AllowPhase AllowScope = iota // default: `allow` with no argument == allow:phase
	AllowRequest
	AllowNone
)
