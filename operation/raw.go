// MIT License
//
// Copyright 2018 Canonical Ledgers, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS
// IN THE SOFTWARE.

package operation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hivekit/hivekit/chain"
)

// Raw is an operation as a node reports it in JSON, before any coercion.
// It unmarshals both the legacy ["name", {...}] form and the appbase
// {"type": "name_operation", "value": {...}} form, and it holds virtual
// operations and operations without a schema.
type Raw struct {
	// Name has any "_operation" suffix removed.
	Name  string
	Value json.RawMessage
}

// UnmarshalJSON accepts either JSON form of an operation.
func (r *Raw) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%T: empty", r)
	}
	switch data[0] {
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("%T: %w", r, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("%T: expected [name, value]", r)
		}
		if err := json.Unmarshal(pair[0], &r.Name); err != nil {
			return fmt.Errorf("%T: name: %w", r, err)
		}
		r.Value = pair[1]
	case '{':
		var obj struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("%T: %w", r, err)
		}
		if obj.Type == "" {
			return fmt.Errorf("%T: missing type", r)
		}
		r.Name, r.Value = obj.Type, obj.Value
	default:
		return fmt.Errorf("%T: expected JSON array or object", r)
	}
	r.Name = strings.TrimSuffix(r.Name, AppbaseSuffix)
	return nil
}

// MarshalJSON encodes r in the legacy form.
func (r Raw) MarshalJSON() ([]byte, error) {
	value := r.Value
	if len(value) == 0 {
		value = json.RawMessage("{}")
	}
	return json.Marshal([2]interface{}{r.Name, value})
}

// Type returns the id of r, if its name is known.
func (r Raw) Type() (Type, bool) { return TypeByName(r.Name) }

// Fields decodes the value of r into a loosely typed map. Numbers are kept
// as json.Number.
func (r Raw) Fields() (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Value))
	dec.UseNumber()
	var f map[string]interface{}
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%v: %w", r.Name, err)
	}
	return Fields(f), nil
}

// FromRaw converts r into a typed Operation.
func FromRaw(p chain.Params, r Raw) (Operation, error) {
	f, err := r.Fields()
	if err != nil {
		return Operation{}, err
	}
	return New(p, r.Name, f)
}

// Raw returns the legacy JSON representation of op as a Raw.
func (op Operation) Raw() (Raw, error) {
	value, err := json.Marshal(op.jsonFields())
	if err != nil {
		return Raw{}, err
	}
	return Raw{Name: op.Type.String(), Value: value}, nil
}
