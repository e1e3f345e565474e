package domain

import (
	"github.com/tidwall/gjson"
)

// Resolve returns the value of the first key in keys that is present in record
// and is neither null nor an empty string. Earlier keys win, so callers list
// newer schema field names first. ok is false when nothing matched or record
// is not an object.
func Resolve(record gjson.Result, keys ...string) (gjson.Result, bool) {
	if !record.IsObject() {
		return gjson.Result{}, false
	}
	for _, k := range keys {
		v := field(record, k)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String && v.Str == "" {
			continue
		}
		return v, true
	}
	return gjson.Result{}, false
}

// field looks up a literal key on an object. Keys are compared verbatim, so
// names containing path syntax ('.', '*', '?') are safe. A duplicated key
// resolves to its last occurrence.
func field(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	if !obj.IsObject() {
		return found
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found = v
		}
		return true
	})
	return found
}

// firstElement returns the first element of a non-empty list value.
func firstElement(v gjson.Result) (gjson.Result, bool) {
	if !v.IsArray() {
		return gjson.Result{}, false
	}
	var first gjson.Result
	ok := false
	v.ForEach(func(_, e gjson.Result) bool {
		first, ok = e, true
		return false
	})
	return first, ok
}

// truthy reports whether v carries a meaningful value: not missing, null,
// false, zero, an empty string, or an empty container.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True:
		return true
	case gjson.JSON:
		empty := true
		v.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return !empty
	default:
		return false
	}
}

// resolveTruthy is Resolve restricted to truthy values.
func resolveTruthy(record gjson.Result, keys ...string) (gjson.Result, bool) {
	v, ok := Resolve(record, keys...)
	if !ok || !truthy(v) {
		return gjson.Result{}, false
	}
	return v, true
}
