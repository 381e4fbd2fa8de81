package provider

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// CodeSuccess is the only business code that carries a usable result.
const CodeSuccess = 1

// Business codes worth another attempt. 4012 is a signature or token
// problem and moves on to the next credential style.
var (
	authCodes      = map[int]bool{4012: true}
	transientCodes = map[int]bool{4029: true, 5000: true, 5006: true}
)

// Envelope is the {code, message, result} wrapper used by GoPlus.
type Envelope struct {
	Code    int
	HasCode bool
	Message string
	Result  json.RawMessage
}

type rawEnvelope struct {
	Code    json.RawMessage `json:"code"`
	CodeAlt json.RawMessage `json:"Code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// ParseEnvelope decodes body when it is a JSON object. Non-object bodies
// yield an envelope without a code.
func ParseEnvelope(body []byte) Envelope {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}
	}
	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Envelope{}
	}
	env := Envelope{Message: raw.Message, Result: raw.Result}
	codeRaw := raw.Code
	if len(codeRaw) == 0 {
		codeRaw = raw.CodeAlt
	}
	if code, ok := parseCode(codeRaw); ok {
		env.Code = code
		env.HasCode = true
	}
	return env
}

func parseCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := strconv.Atoi(n.String()); err == nil {
			return v, true
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v, true
		}
	}
	return 0, false
}
