// Package parser decodes persona and message records from the
// schemaless store trees.
package parser

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Node is one keyed child of a store tree.
type Node struct {
	Key   string
	Value gjson.Result
}

// Children returns the direct children of r in canonical order.
// Object members come in key order (see compareKeys); when a key
// repeats, only its last member is kept. Array elements come in
// index order with their index as key, so an array and the object
// rebuilt from its indexes enumerate the same way. Scalars and
// missing values have no children.
func Children(r gjson.Result) []Node {
	switch {
	case r.IsObject():
		var nodes []Node
		r.ForEach(func(key, value gjson.Result) bool {
			nodes = append(nodes, Node{Key: key.String(), Value: value})
			return true
		})
		slices.SortStableFunc(nodes, func(a, b Node) int {
			return compareKeys(a.Key, b.Key)
		})
		// Equal keys are adjacent and in document order.
		out := nodes[:0]
		for i, n := range nodes {
			if i+1 < len(nodes) && nodes[i+1].Key == n.Key {
				continue
			}
			out = append(out, n)
		}
		return out
	case r.IsArray():
		var nodes []Node
		i := 0
		r.ForEach(func(_, value gjson.Result) bool {
			nodes = append(nodes, Node{
				Key: strconv.Itoa(i), Value: value,
			})
			i++
			return true
		})
		return nodes
	default:
		return nil
	}
}

// compareKeys orders keys the way the Realtime Database does:
// integer keys first in numeric order, then the rest bytewise.
func compareKeys(a, b string) int {
	ai, aok := integerKey(a)
	bi, bok := integerKey(b)
	switch {
	case aok && bok:
		return cmp.Compare(ai, bi)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// integerKey parses k when it is a plain decimal without sign or
// leading zeros.
func integerKey(k string) (int64, bool) {
	if k == "" || len(k) > 18 || (k[0] == '0' && len(k) > 1) {
		return 0, false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(k, 10, 64)
	return n, err == nil
}

// Child returns the child of r stored under key, the last one
// when the key repeats. Keys are matched literally, so ids
// containing gjson path syntax ('.', '*', '?') are safe.
func Child(r gjson.Result, key string) gjson.Result {
	for _, n := range Children(r) {
		if n.Key == key {
			return n.Value
		}
	}
	return gjson.Result{}
}

// IsContainer reports whether r can hold keyed children.
func IsContainer(r gjson.Result) bool {
	return r.IsObject() || r.IsArray()
}
