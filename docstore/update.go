// Mongo-style update operator application.
//
// Supported operators: $set $unset $inc $push. Update documents must
// consist entirely of operator keys; ReplaceOne takes the opposite rule
// (no operator keys), enforced by callers.

package docstore

import (
	"fmt"
	"strings"
)

// applyUpdate applies an update document to doc, returning the updated
// copy and whether anything changed. doc itself is not mutated.
func applyUpdate(doc Document, update map[string]interface{}) (Document, bool, error) {
	updated := doc.Clone()

	for op, arg := range update {
		if !strings.HasPrefix(op, "$") {
			return nil, false, fmt.Errorf("update document must contain only update operators, found key %q", op)
		}
		fields, ok := arg.(map[string]interface{})
		if !ok {
			return nil, false, fmt.Errorf("%s requires an object", op)
		}

		for path, value := range fields {
			switch op {
			case "$set":
				if err := setPath(updated, path, cloneValue(value)); err != nil {
					return nil, false, err
				}
			case "$unset":
				unsetPath(updated, path)
			case "$inc":
				delta, ok := toFloat(value)
				if !ok {
					return nil, false, fmt.Errorf("$inc value for %q must be numeric", path)
				}
				current, exists := lookupPath(updated, path)
				base := 0.0
				if exists {
					base, ok = toFloat(current)
					if !ok {
						return nil, false, fmt.Errorf("$inc target %q is not numeric", path)
					}
				}
				if err := setPath(updated, path, base+delta); err != nil {
					return nil, false, err
				}
			case "$push":
				current, exists := lookupPath(updated, path)
				var arr []interface{}
				if exists {
					arr, ok = current.([]interface{})
					if !ok {
						return nil, false, fmt.Errorf("$push target %q is not an array", path)
					}
				}
				arr = append(arr, cloneValue(value))
				if err := setPath(updated, path, arr); err != nil {
					return nil, false, err
				}
			default:
				return nil, false, fmt.Errorf("unsupported update operator %q", op)
			}
		}
	}

	changed := canonical(map[string]interface{}(doc)) != canonical(map[string]interface{}(updated))
	return updated, changed, nil
}

// setPath sets a possibly dotted field path, creating intermediate objects.
func setPath(doc Document, path string, value interface{}) error {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			child := make(map[string]interface{})
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot set %q: %q is not an object", path, part)
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// unsetPath removes a possibly dotted field path; missing paths are a no-op.
func unsetPath(doc Document, path string) {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
