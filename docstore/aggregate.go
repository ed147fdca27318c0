// Aggregation pipeline evaluation.
//
// Supported stages: $match $sort $skip $limit $project $group $count.
// $group accumulators: $sum $avg $min $max. Field references use the
// "$field" form; dotted paths are allowed.

package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// runPipeline evaluates a pipeline over docs. Each stage must be an
// object with exactly one stage key.
func runPipeline(docs []Document, pipeline []map[string]interface{}) ([]Document, error) {
	current := make([]Document, len(docs))
	for i, doc := range docs {
		current[i] = doc.Clone()
	}

	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("pipeline stage %d must have exactly one key", i)
		}
		var err error
		for name, spec := range stage {
			switch name {
			case "$match":
				current, err = stageMatch(current, spec)
			case "$sort":
				current, err = stageSort(current, spec)
			case "$skip":
				current, err = stageSkip(current, spec)
			case "$limit":
				current, err = stageLimit(current, spec)
			case "$project":
				current, err = stageProject(current, spec)
			case "$group":
				current, err = stageGroup(current, spec)
			case "$count":
				current, err = stageCount(current, spec)
			default:
				err = fmt.Errorf("unsupported pipeline stage %q", name)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %d: %w", i, err)
		}
	}

	return current, nil
}

func stageMatch(docs []Document, spec interface{}) ([]Document, error) {
	filter, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("$match requires an object")
	}
	var out []Document
	for _, doc := range docs {
		matched, err := Matches(doc, Filter(filter))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, doc)
		}
	}
	return out, nil
}

func stageSort(docs []Document, spec interface{}) ([]Document, error) {
	keys, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("$sort requires an object")
	}
	type sortKey struct {
		field string
		desc  bool
	}
	var order []sortKey
	for field, dir := range keys {
		d, ok := toFloat(dir)
		if !ok || (d != 1 && d != -1) {
			return nil, fmt.Errorf("$sort direction for %q must be 1 or -1", field)
		}
		order = append(order, sortKey{field: field, desc: d == -1})
	}
	// Map iteration order is random; sort keys for deterministic multi-key output.
	sort.Slice(order, func(i, j int) bool { return order[i].field < order[j].field })

	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, k := range order {
			av, _ := lookupPath(sorted[i], k.field)
			bv, _ := lookupPath(sorted[j], k.field)
			cmp, ok := compareValues(av, bv)
			if !ok || cmp == 0 {
				continue
			}
			if k.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sorted, nil
}

func stageSkip(docs []Document, spec interface{}) ([]Document, error) {
	n, ok := toFloat(spec)
	if !ok || n < 0 {
		return nil, fmt.Errorf("$skip requires a non-negative number")
	}
	if int(n) >= len(docs) {
		return nil, nil
	}
	return docs[int(n):], nil
}

func stageLimit(docs []Document, spec interface{}) ([]Document, error) {
	n, ok := toFloat(spec)
	if !ok || n < 0 {
		return nil, fmt.Errorf("$limit requires a non-negative number")
	}
	if int(n) < len(docs) {
		return docs[:int(n)], nil
	}
	return docs, nil
}

func stageProject(docs []Document, spec interface{}) ([]Document, error) {
	fields, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("$project requires an object")
	}

	include := false
	for _, v := range fields {
		if f, ok := toFloat(v); ok && f == 1 {
			include = true
			break
		}
	}

	var out []Document
	for _, doc := range docs {
		projected := Document{}
		if include {
			if id, ok := doc[IDField]; ok {
				projected[IDField] = id
			}
			for field, v := range fields {
				f, _ := toFloat(v)
				if f == 0 {
					delete(projected, field)
					continue
				}
				if val, exists := lookupPath(doc, field); exists {
					projected[field] = cloneValue(val)
				}
			}
		} else {
			projected = doc.Clone()
			for field := range fields {
				unsetPath(projected, field)
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

func stageGroup(docs []Document, spec interface{}) ([]Document, error) {
	groupSpec, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("$group requires an object")
	}
	idExpr, ok := groupSpec[IDField]
	if !ok {
		return nil, fmt.Errorf("$group requires an %s expression", IDField)
	}

	type accumulator struct {
		sum   float64
		min   interface{}
		max   interface{}
		count int64
	}
	type group struct {
		id   interface{}
		accs map[string]*accumulator
	}

	groups := make(map[string]*group)
	var order []string

	for _, doc := range docs {
		key := evalExpr(doc, idExpr)
		keyStr := canonical(key)
		g, ok := groups[keyStr]
		if !ok {
			g = &group{id: key, accs: make(map[string]*accumulator)}
			groups[keyStr] = g
			order = append(order, keyStr)
		}

		for field, accSpec := range groupSpec {
			if field == IDField {
				continue
			}
			accMap, ok := accSpec.(map[string]interface{})
			if !ok || len(accMap) != 1 {
				return nil, fmt.Errorf("$group accumulator for %q must be a single-operator object", field)
			}
			acc, ok := g.accs[field]
			if !ok {
				acc = &accumulator{}
				g.accs[field] = acc
			}
			for op, expr := range accMap {
				val := evalExpr(doc, expr)
				switch op {
				case "$sum":
					if f, ok := toFloat(val); ok {
						acc.sum += f
					}
					acc.count++
				case "$avg":
					if f, ok := toFloat(val); ok {
						acc.sum += f
						acc.count++
					}
				case "$min":
					if acc.min == nil {
						acc.min = val
					} else if cmp, ok := compareValues(val, acc.min); ok && cmp < 0 {
						acc.min = val
					}
				case "$max":
					if acc.max == nil {
						acc.max = val
					} else if cmp, ok := compareValues(val, acc.max); ok && cmp > 0 {
						acc.max = val
					}
				default:
					return nil, fmt.Errorf("unsupported $group accumulator %q", op)
				}
			}
		}
	}

	var out []Document
	for _, keyStr := range order {
		g := groups[keyStr]
		result := Document{IDField: g.id}
		for field, accSpec := range groupSpec {
			if field == IDField {
				continue
			}
			accMap := accSpec.(map[string]interface{})
			acc := g.accs[field]
			for op := range accMap {
				switch op {
				case "$sum":
					result[field] = acc.sum
				case "$avg":
					if acc.count > 0 {
						result[field] = acc.sum / float64(acc.count)
					} else {
						result[field] = nil
					}
				case "$min":
					result[field] = acc.min
				case "$max":
					result[field] = acc.max
				}
			}
		}
		out = append(out, result)
	}
	return out, nil
}

func stageCount(docs []Document, spec interface{}) ([]Document, error) {
	name, ok := spec.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("$count requires a non-empty field name")
	}
	return []Document{{name: float64(len(docs))}}, nil
}

// evalExpr evaluates a group expression: "$field" references resolve
// against the document, anything else is a literal.
func evalExpr(doc Document, expr interface{}) interface{} {
	if ref, ok := expr.(string); ok && strings.HasPrefix(ref, "$") {
		val, _ := lookupPath(doc, strings.TrimPrefix(ref, "$"))
		return val
	}
	return expr
}
