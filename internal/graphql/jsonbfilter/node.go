// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package jsonbfilter compiles the JsonbFilterInput sub-language
// into a squirrel.Sqlizer predicate over a jsonb column, operator by
// operator.
package jsonbfilter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// kind discriminates the three JSON shapes a Node can hold. Unlike a bare
// map[string]any decode, parseNode preserves source key order, which
// Compile relies on to build deterministic SQL.
type kind int

const (
	kindLeaf kind = iota
	kindObject
	kindArray
)

// kv is one ordered object entry.
type kv struct {
	Key   string
	Value Node
}

// Node is an order-preserving parse of a JSON document: leaves carry a Go
// scalar (string, float64, bool, or nil), objects carry their entries in
// source order, and arrays carry their elements in order.
type Node struct {
	Kind   kind
	Leaf   any
	Object []kv
	Array  []Node
}

func (n Node) IsLeaf() bool   { return n.Kind == kindLeaf }
func (n Node) IsObject() bool { return n.Kind == kindObject }
func (n Node) IsArray() bool  { return n.Kind == kindArray }

// parseDocument decodes a JSONB filter document preserving key order.
func parseDocument(doc json.RawMessage) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	n, err := parseNode(dec)
	if err != nil {
		return Node{}, err
	}
	return n, nil
}

func parseNode(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var obj []kv
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Node{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Node{}, fmt.Errorf("jsonbfilter: object key is not a string")
				}
				val, err := parseNode(dec)
				if err != nil {
					return Node{}, err
				}
				obj = append(obj, kv{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Node{}, err
			}
			return Node{Kind: kindObject, Object: obj}, nil
		case '[':
			var arr []Node
			for dec.More() {
				v, err := parseNode(dec)
				if err != nil {
					return Node{}, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Node{}, err
			}
			return Node{Kind: kindArray, Array: arr}, nil
		}
		return Node{}, fmt.Errorf("jsonbfilter: unexpected delimiter %v", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: kindLeaf, Leaf: f}, nil
	default:
		// string, bool, or nil all pass through as-is.
		return Node{Kind: kindLeaf, Leaf: t}, nil
	}
}

// Marshal reconstructs JSON bytes for n, used to turn a leaf/array operator
// value back into a literal to bind as a query argument.
func (n Node) Marshal() (json.RawMessage, error) {
	switch n.Kind {
	case kindLeaf:
		return json.Marshal(n.Leaf)
	case kindArray:
		parts := make([]json.RawMessage, len(n.Array))
		for i, c := range n.Array {
			b, err := c.Marshal()
			if err != nil {
				return nil, err
			}
			parts[i] = b
		}
		return json.Marshal(parts)
	case kindObject:
		m := make(map[string]json.RawMessage, len(n.Object))
		for _, e := range n.Object {
			b, err := e.Value.Marshal()
			if err != nil {
				return nil, err
			}
			m[e.Key] = b
		}
		return json.Marshal(m)
	default:
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: node has no kind")
	}
}

// AsString returns the leaf's string value, or ok=false.
func (n Node) AsString() (string, bool) {
	if n.Kind != kindLeaf {
		return "", false
	}
	s, ok := n.Leaf.(string)
	return s, ok
}

// AsBool returns the leaf's bool value, or ok=false.
func (n Node) AsBool() (bool, bool) {
	if n.Kind != kindLeaf {
		return false, false
	}
	b, ok := n.Leaf.(bool)
	return b, ok
}

// AsNumber returns the leaf's numeric value, or ok=false.
func (n Node) AsNumber() (float64, bool) {
	if n.Kind != kindLeaf {
		return 0, false
	}
	f, ok := n.Leaf.(float64)
	return f, ok
}
