// Mongo-style filter evaluation.
//
// Supported per-field operators: $eq $ne $gt $gte $lt $lte $in $nin
// $exists $regex. Supported top-level logical operators: $and $or $not.
// A condition with no operator keys is a plain equality match.

package docstore

import (
	"fmt"
	"regexp"
	"strings"
)

// Matches reports whether doc satisfies filter.
// An empty filter matches every document.
func Matches(doc Document, filter Filter) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and":
			subs, err := toFilterList(key, cond)
			if err != nil {
				return false, err
			}
			for _, sub := range subs {
				ok, err := Matches(doc, sub)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
		case "$or":
			subs, err := toFilterList(key, cond)
			if err != nil {
				return false, err
			}
			matched := false
			for _, sub := range subs {
				ok, err := Matches(doc, sub)
				if err != nil {
					return false, err
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
		case "$not":
			sub, ok := cond.(map[string]interface{})
			if !ok {
				return false, fmt.Errorf("$not requires an object")
			}
			matched, err := Matches(doc, Filter(sub))
			if err != nil {
				return false, err
			}
			if matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("unsupported top-level operator %q", key)
			}
			val, exists := lookupPath(doc, key)
			ok, err := matchValue(val, exists, cond)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", key, err)
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// matchValue evaluates a single field condition: either an operator object
// or a plain equality value.
func matchValue(val interface{}, exists bool, cond interface{}) (bool, error) {
	condMap, isMap := cond.(map[string]interface{})
	if !isMap || !hasOperatorKeys(condMap) {
		return exists && equalValues(val, cond), nil
	}

	for op, arg := range condMap {
		switch op {
		case "$eq":
			if !exists || !equalValues(val, arg) {
				return false, nil
			}
		case "$ne":
			if exists && equalValues(val, arg) {
				return false, nil
			}
		case "$gt", "$gte", "$lt", "$lte":
			cmp, ok := compareValues(val, arg)
			if !exists || !ok {
				return false, nil
			}
			switch op {
			case "$gt":
				if cmp <= 0 {
					return false, nil
				}
			case "$gte":
				if cmp < 0 {
					return false, nil
				}
			case "$lt":
				if cmp >= 0 {
					return false, nil
				}
			case "$lte":
				if cmp > 0 {
					return false, nil
				}
			}
		case "$in":
			list, ok := arg.([]interface{})
			if !ok {
				return false, fmt.Errorf("$in requires an array")
			}
			if !exists || !containsValue(list, val) {
				return false, nil
			}
		case "$nin":
			list, ok := arg.([]interface{})
			if !ok {
				return false, fmt.Errorf("$nin requires an array")
			}
			if exists && containsValue(list, val) {
				return false, nil
			}
		case "$exists":
			want, ok := arg.(bool)
			if !ok {
				return false, fmt.Errorf("$exists requires a boolean")
			}
			if exists != want {
				return false, nil
			}
		case "$regex":
			pattern, ok := arg.(string)
			if !ok {
				return false, fmt.Errorf("$regex requires a string pattern")
			}
			s, ok := val.(string)
			if !exists || !ok {
				return false, nil
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false, fmt.Errorf("invalid $regex pattern: %w", err)
			}
			if !re.MatchString(s) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", op)
		}
	}
	return true, nil
}

// toFilterList coerces a $and/$or argument into a list of sub-filters.
func toFilterList(op string, cond interface{}) ([]Filter, error) {
	list, ok := cond.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s requires an array of filters", op)
	}
	subs := make([]Filter, 0, len(list))
	for _, item := range list {
		sub, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s elements must be objects", op)
		}
		subs = append(subs, Filter(sub))
	}
	return subs, nil
}

// hasOperatorKeys reports whether any key looks like an operator.
func hasOperatorKeys(m map[string]interface{}) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// lookupPath resolves a possibly dotted field path against a document.
func lookupPath(doc Document, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(doc)
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equalValues compares two values with JSON-number normalization.
func equalValues(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return canonical(a) == canonical(b)
}

// compareValues orders two values if they are both numbers or both strings.
func compareValues(a, b interface{}) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func containsValue(list []interface{}, val interface{}) bool {
	for _, item := range list {
		if equalValues(val, item) {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// findDocs filters docs, cloning matches, up to limit (limit <= 0 = all).
// Used by backends after loading a collection.
func findDocs(docs []Document, filter Filter, limit int) ([]Document, error) {
	var results []Document
	for _, doc := range docs {
		ok, err := Matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, doc.Clone())
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}
