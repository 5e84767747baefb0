package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type ScopeType string

const (
	ScopeGlobal       ScopeType = "global"
	ScopeOrganization ScopeType = "organization"
	ScopeUser         ScopeType = "user"
)

func (s ScopeType) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeOrganization, ScopeUser:
		return true
	}
	return false
}

type ValueKind string

const (
	KindBool   ValueKind = "boolean"
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindJSON   ValueKind = "json"
)

// SettingValue is a tagged value. The kind is fixed when the value is
// written, so readers never have to guess the shape.
type SettingValue struct {
	Kind   ValueKind       `json:"kind"`
	Bool   bool            `json:"-"`
	String string          `json:"-"`
	Number float64         `json:"-"`
	JSON   json.RawMessage `json:"-"`
}

func BoolValue(b bool) SettingValue      { return SettingValue{Kind: KindBool, Bool: b} }
func StringValue(s string) SettingValue  { return SettingValue{Kind: KindString, String: s} }
func NumberValue(n float64) SettingValue { return SettingValue{Kind: KindNumber, Number: n} }
func JSONValue(raw []byte) SettingValue  { return SettingValue{Kind: KindJSON, JSON: json.RawMessage(raw)} }

// Encode returns the JSON text stored in the value column.
func (v SettingValue) Encode() (string, error) {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64), nil
	case KindString:
		b, err := json.Marshal(v.String)
		return string(b), err
	case KindJSON:
		if !json.Valid(v.JSON) {
			return "", fmt.Errorf("invalid json value")
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v.JSON); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	return "", fmt.Errorf("unknown value kind %q", v.Kind)
}

// DecodeSettingValue rebuilds a value from its stored text and kind. Rows
// written before kinds were recorded have an empty kind: they are parsed as
// JSON and fall back to the raw string.
func DecodeSettingValue(kind ValueKind, text string) (SettingValue, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		return BoolValue(b), err
	case KindNumber:
		n, err := strconv.ParseFloat(text, 64)
		return NumberValue(n), err
	case KindString:
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return StringValue(text), nil
		}
		return StringValue(s), nil
	case KindJSON:
		if !json.Valid([]byte(text)) {
			return SettingValue{}, fmt.Errorf("stored json value is invalid")
		}
		return JSONValue([]byte(text)), nil
	case "":
		return inferSettingValue(text), nil
	}
	return SettingValue{}, fmt.Errorf("unknown value kind %q", kind)
}

func inferSettingValue(text string) SettingValue {
	var anyVal any
	if err := json.Unmarshal([]byte(text), &anyVal); err != nil {
		return StringValue(text)
	}
	switch t := anyVal.(type) {
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case string:
		return StringValue(t)
	default:
		return JSONValue([]byte(text))
	}
}

// ParseSettingValue builds a value from a JSON request body. An empty kind
// is inferred from the JSON; an explicit kind must agree with it, except
// that any valid JSON may be stored as KindJSON.
func ParseSettingValue(raw json.RawMessage, kind ValueKind) (SettingValue, error) {
	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		return SettingValue{}, fmt.Errorf("value is not valid json")
	}
	if kind == KindJSON {
		return JSONValue(raw), nil
	}
	v := inferSettingValue(string(raw))
	if kind != "" && kind != v.Kind {
		return SettingValue{}, fmt.Errorf("value does not match kind %q", kind)
	}
	return v, nil
}

// Interface returns the plain Go value, for JSON responses.
func (v SettingValue) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.String
	case KindJSON:
		return v.JSON
	}
	return nil
}

type Setting struct {
	Key       string       `json:"key"`
	ScopeType ScopeType    `json:"scope_type"`
	ScopeID   *uuid.UUID   `json:"scope_id,omitempty"`
	Value     SettingValue `json:"-"`
	IsActive  bool         `json:"is_active"`
	UpdatedAt time.Time    `json:"updated_at"`
}
