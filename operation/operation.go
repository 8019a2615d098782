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

// Package operation is the registry of graphene operations: the id table,
// the field schema of each operation, coercion of loosely typed field maps
// into typed values, and the binary and JSON encodings.
package operation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/keys"
	"github.com/hivekit/hivekit/wire"
)

var (
	// ErrVirtualOperation is returned when a virtual operation is built or
	// encoded for an outgoing transaction.
	ErrVirtualOperation = errors.New("virtual operations cannot be broadcast")
	// ErrNoSchema is returned when an operation has no binary schema.
	ErrNoSchema = errors.New("no schema for operation")
	// ErrMissingField is returned when encoding an operation that lacks a
	// required field.
	ErrMissingField = errors.New("missing")
)

// UnknownOperationIDError is returned when decoding an id outside the table.
type UnknownOperationIDError uint32

func (id UnknownOperationIDError) Error() string {
	return fmt.Sprintf("unknown operation id %v", uint32(id))
}

// UnknownOperationError is returned for an operation name not in the table.
type UnknownOperationError string

func (name UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", string(name))
}

// FieldError identifies the field of an operation that could not be
// coerced, encoded or decoded.
type FieldError struct {
	Op    Type
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%v.%v: %v", e.Op, e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// Fields holds operation payload values keyed by field name.
type Fields map[string]interface{}

// Operation is an immutable, typed operation. Construct it with New or
// Decode.
type Operation struct {
	Type   Type
	fields Fields
}

// New builds an operation from a name and loosely typed field values, such
// as the result of decoding JSON. Every schema field must be present,
// except optional and extensions fields, and no other field may be given.
// Values are coerced to the field's kind and never guessed.
func New(p chain.Params, name string, fields Fields) (Operation, error) {
	t, ok := TypeByName(name)
	if !ok {
		return Operation{}, UnknownOperationError(name)
	}
	if t.IsVirtual() {
		return Operation{}, fmt.Errorf("%w: %v", ErrVirtualOperation, t)
	}
	schema, ok := schemas[t]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %v", ErrNoSchema, t)
	}
	known := make(map[string]struct{}, len(schema))
	typed := make(Fields, len(schema))
	for _, f := range schema {
		known[f.Name] = struct{}{}
		key, v, present := lookup(fields, f)
		if f.Alias != "" {
			known[f.Alias] = struct{}{}
		}
		if !present {
			switch f.Kind {
			case KindOptionalAuthority, KindOptionalPublicKey, KindExtensions:
				continue
			}
			return Operation{}, FieldError{Op: t, Field: f.Name,
				Err: errors.New("missing")}
		}
		cv, err := coerce(p, f.Kind, v)
		if err != nil {
			return Operation{}, FieldError{Op: t, Field: key, Err: err}
		}
		if cv == nil {
			continue
		}
		typed[key] = cv
	}
	for name := range fields {
		if _, ok := known[name]; !ok {
			return Operation{}, FieldError{Op: t, Field: name,
				Err: errors.New("unknown field")}
		}
	}
	return Operation{Type: t, fields: typed}, nil
}

// lookup finds f in fields by its name or alias and returns the key used.
func lookup(fields Fields, f Field) (string, interface{}, bool) {
	if v, ok := fields[f.Name]; ok {
		return f.Name, v, true
	}
	if f.Alias != "" {
		if v, ok := fields[f.Alias]; ok {
			return f.Alias, v, true
		}
	}
	return f.Name, nil, false
}

// Name returns the operation name.
func (op Operation) Name() string { return op.Type.String() }

// Get returns the typed value of a field, looked up by name or alias.
func (op Operation) Get(name string) (interface{}, bool) {
	v, ok := op.fields[name]
	if ok {
		return v, true
	}
	for _, f := range schemas[op.Type] {
		if f.Alias == name || f.Name == name {
			_, v, ok = lookup(op.fields, f)
			return v, ok
		}
	}
	return nil, false
}

// Fields returns a copy of the typed field values.
func (op Operation) Fields() Fields {
	c := make(Fields, len(op.fields))
	for k, v := range op.fields {
		c[k] = v
	}
	return c
}

// Encode writes varint(id) followed by the payload fields in schema order.
func (op Operation) Encode(e *wire.Encoder) error {
	if op.Type.IsVirtual() {
		return fmt.Errorf("%w: %v", ErrVirtualOperation, op.Type)
	}
	schema, ok := schemas[op.Type]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoSchema, op.Type)
	}
	e.Varint(uint32(op.Type))
	for _, f := range schema {
		_, v, _ := lookup(op.fields, f)
		if err := encodeValue(e, f.Kind, v); err != nil {
			return FieldError{Op: op.Type, Field: f.Name, Err: err}
		}
	}
	return nil
}

// Bytes returns the binary encoding of op.
func (op Operation) Bytes() ([]byte, error) {
	var e wire.Encoder
	if err := op.Encode(&e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func encodeValue(e *wire.Encoder, kind Kind, v interface{}) error {
	if v == nil {
		switch kind {
		case KindOptionalPublicKey, KindOptionalAuthority:
			e.Uint8(0)
			return nil
		case KindExtensions:
			e.Varint(0)
			return nil
		}
		return ErrMissingField
	}
	var ok bool
	switch kind {
	case KindString:
		var s string
		if s, ok = v.(string); ok {
			e.String(s)
		}
	case KindBool:
		var b bool
		if b, ok = v.(bool); ok {
			e.Bool(b)
		}
	case KindUint16:
		var i uint16
		if i, ok = v.(uint16); ok {
			e.Uint16(i)
		}
	case KindUint32:
		var i uint32
		if i, ok = v.(uint32); ok {
			e.Uint32(i)
		}
	case KindInt16:
		var i int16
		if i, ok = v.(int16); ok {
			e.Int16(i)
		}
	case KindAmount:
		if a, ok := v.(Amount); ok {
			return a.encode(e)
		}
	case KindPrice:
		if p, ok := v.(Price); ok {
			return p.encode(e)
		}
	case KindPublicKey, KindOptionalPublicKey:
		var key keys.PublicKey
		if key, ok = v.(keys.PublicKey); ok {
			if kind == KindOptionalPublicKey {
				e.Uint8(1)
			}
			e.Raw(key.Bytes())
		}
	case KindAuthority, KindOptionalAuthority:
		var auth Authority
		if auth, ok = v.(Authority); ok {
			if kind == KindOptionalAuthority {
				e.Uint8(1)
			}
			auth.encode(e)
		}
	case KindAccountSet:
		var set []string
		if set, ok = v.([]string); ok {
			e.Varint(uint32(len(set)))
			for _, s := range set {
				e.String(s)
			}
		}
	case KindInt64Set:
		var set []int64
		if set, ok = v.([]int64); ok {
			e.Varint(uint32(len(set)))
			for _, i := range set {
				e.Int64(i)
			}
		}
	case KindTime:
		if t, ok := v.(chain.Time); ok {
			return e.Time(t.Time)
		}
	case KindBytes:
		var b chain.Bytes
		if b, ok = v.(chain.Bytes); ok {
			e.VarBytes(b)
		}
	case KindExtensions:
		e.Varint(0)
		return nil
	default:
		return fmt.Errorf("unsupported kind %v", kind)
	}
	if !ok {
		return typeError(kind, v)
	}
	return nil
}

// checkCount rejects a set length that cannot fit in the rest of the
// buffer, given the smallest encoding of one element.
func checkCount(d *wire.Decoder, n uint32, size int) error {
	if uint64(n)*uint64(size) > uint64(d.Remaining()) {
		return fmt.Errorf("%w: %v elements of at least %v bytes, have %v",
			wire.ErrShortBuffer, n, size, d.Remaining())
	}
	return nil
}

// Decode reads one operation. Ids outside the table yield an
// UnknownOperationIDError. Operations without a schema, including all
// virtual operations, cannot be decoded from binary.
func Decode(d *wire.Decoder, p chain.Params) (Operation, error) {
	id, err := d.Varint()
	if err != nil {
		return Operation{}, err
	}
	t := Type(id)
	if id > 0xffff || !t.IsKnown() {
		return Operation{}, UnknownOperationIDError(id)
	}
	schema, ok := schemas[t]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %v", ErrNoSchema, t)
	}
	fields := make(Fields, len(schema))
	for _, f := range schema {
		v, err := decodeValue(d, p, f.Kind)
		if err != nil {
			return Operation{}, FieldError{Op: t, Field: f.Name, Err: err}
		}
		if v != nil {
			fields[f.Name] = v
		}
	}
	return Operation{Type: t, fields: fields}, nil
}

func decodeValue(d *wire.Decoder, p chain.Params, kind Kind) (interface{}, error) {
	switch kind {
	case KindString:
		return d.String()
	case KindBool:
		return d.Bool()
	case KindUint16:
		return d.Uint16()
	case KindUint32:
		return d.Uint32()
	case KindInt16:
		return d.Int16()
	case KindAmount:
		return decodeAmount(d, p)
	case KindPrice:
		return decodePrice(d, p)
	case KindPublicKey:
		return decodePublicKey(d, p.Prefix)
	case KindOptionalPublicKey:
		if present, err := d.Bool(); err != nil || !present {
			return nil, err
		}
		return decodePublicKey(d, p.Prefix)
	case KindAuthority:
		return decodeAuthority(d, p.Prefix)
	case KindOptionalAuthority:
		if present, err := d.Bool(); err != nil || !present {
			return nil, err
		}
		return decodeAuthority(d, p.Prefix)
	case KindAccountSet:
		n, err := d.Varint()
		if err != nil {
			return nil, err
		}
		// An empty name still takes its length byte.
		if err := checkCount(d, n, 1); err != nil {
			return nil, err
		}
		set := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			s, err := d.String()
			if err != nil {
				return nil, err
			}
			set = append(set, s)
		}
		return set, nil
	case KindInt64Set:
		n, err := d.Varint()
		if err != nil {
			return nil, err
		}
		if err := checkCount(d, n, 8); err != nil {
			return nil, err
		}
		set := make([]int64, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.Int64()
			if err != nil {
				return nil, err
			}
			set = append(set, v)
		}
		return set, nil
	case KindTime:
		t, err := d.Time()
		return chain.Time{Time: t}, err
	case KindBytes:
		b, err := d.VarBytes()
		return chain.Bytes(b), err
	case KindExtensions:
		n, err := d.Varint()
		if err != nil {
			return nil, err
		}
		if n != 0 {
			return nil, fmt.Errorf("%v extensions present, only empty "+
				"extensions are supported", n)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported kind %v", kind)
}

func decodePublicKey(d *wire.Decoder, prefix string) (keys.PublicKey, error) {
	b, err := d.Raw(keys.CompressedLen)
	if err != nil {
		return keys.PublicKey{}, err
	}
	return keys.PublicKeyFromBytes(b, prefix)
}

// MarshalJSON encodes op in the legacy form: ["name", {fields}].
func (op Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{op.Type.String(), op.jsonFields()})
}

// MarshalAppbase encodes op in the appbase form:
// {"type": "name_operation", "value": {fields}}, with amounts as NAI
// objects.
func (op Operation) MarshalAppbase() ([]byte, error) {
	value := op.jsonFields()
	for k, v := range value {
		switch v := v.(type) {
		case Amount:
			value[k] = v.NAI()
		case Price:
			value[k] = map[string]interface{}{
				"base": v.Base.NAI(), "quote": v.Quote.NAI()}
		}
	}
	return json.Marshal(struct {
		Type  string                 `json:"type"`
		Value map[string]interface{} `json:"value"`
	}{Type: op.Type.AppbaseName(), Value: value})
}

// jsonFields returns the fields with every extensions field present.
func (op Operation) jsonFields() map[string]interface{} {
	m := make(map[string]interface{}, len(op.fields)+1)
	for k, v := range op.fields {
		m[k] = v
	}
	for _, f := range schemas[op.Type] {
		if f.Kind == KindExtensions {
			if _, ok := m[f.Name]; !ok {
				m[f.Name] = []interface{}{}
			}
		}
	}
	return m
}

// sortedStrings returns a sorted copy of s.
func sortedStrings(s []string) []string {
	c := append([]string(nil), s...)
	sort.Strings(c)
	return c
}
