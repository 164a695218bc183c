/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package docstore

import (
	"fmt"
	"sort"

	"github.com/evermemos/memcore/pkg/litefield"
)

// Expr is a typed query predicate tree. Every literal field reference,
// wherever it is nested, is validated against a class's Lite schema
// before the query runs.
type Expr interface {
	isExpr()
}

// EqExpr matches documents where Field equals Value.
type EqExpr struct {
	Field string
	Value any
}

func (EqExpr) isExpr() {}

// Eq builds an equality predicate.
func Eq(field string, value any) Expr { return EqExpr{Field: field, Value: value} }

// InExpr matches documents where Field's value is one of Values.
type InExpr struct {
	Field  string
	Values []any
}

func (InExpr) isExpr() {}

// In builds a membership predicate.
func In(field string, values ...any) Expr { return InExpr{Field: field, Values: values} }

// GtExpr matches documents where Field's value is strictly greater than
// Value. Numeric values are compared as float64; strings (including
// RFC3339 timestamps, which sort lexically) are compared as strings.
type GtExpr struct {
	Field string
	Value any
}

func (GtExpr) isExpr() {}

// Gt builds a greater-than predicate.
func Gt(field string, value any) Expr { return GtExpr{Field: field, Value: value} }

// AndExpr matches documents where every sub-expression matches.
type AndExpr struct{ Exprs []Expr }

func (AndExpr) isExpr() {}

// And combines predicates with logical AND.
func And(exprs ...Expr) Expr { return AndExpr{Exprs: exprs} }

// OrExpr matches documents where at least one sub-expression matches.
type OrExpr struct{ Exprs []Expr }

func (OrExpr) isExpr() {}

// Or combines predicates with logical OR.
func Or(exprs ...Expr) Expr { return OrExpr{Exprs: exprs} }

// NotExpr matches documents where the wrapped expression does not match.
type NotExpr struct{ Expr Expr }

func (NotExpr) isExpr() {}

// Not negates a predicate.
func Not(expr Expr) Expr { return NotExpr{Expr: expr} }

// NorExpr matches documents where none of the sub-expressions match.
type NorExpr struct{ Exprs []Expr }

func (NorExpr) isExpr() {}

// Nor combines predicates with logical NOR.
func Nor(exprs ...Expr) Expr { return NorExpr{Exprs: exprs} }

// ElemMatchExpr matches documents where Field is an array containing at
// least one element for which Sub matches.
type ElemMatchExpr struct {
	Field string
	Sub   Expr
}

func (ElemMatchExpr) isExpr() {}

// ElemMatch builds an array element-match predicate.
func ElemMatch(field string, sub Expr) Expr { return ElemMatchExpr{Field: field, Sub: sub} }

// Validate walks expr and returns a *LiteStorageQueryError naming every
// field reference that is not part of schema. A nil return means every
// field in expr is safe to query.
func Validate(expr Expr, schema litefield.Schema) error {
	seen := map[string]struct{}{}
	collectFields(expr, seen)

	var offending []string
	for f := range seen {
		if !schema.Has(f) {
			offending = append(offending, f)
		}
	}
	if len(offending) == 0 {
		return nil
	}

	sort.Strings(offending)
	return &LiteStorageQueryError{Fields: offending}
}

func collectFields(expr Expr, out map[string]struct{}) {
	switch e := expr.(type) {
	case EqExpr:
		out[e.Field] = struct{}{}
	case InExpr:
		out[e.Field] = struct{}{}
	case GtExpr:
		out[e.Field] = struct{}{}
	case AndExpr:
		for _, sub := range e.Exprs {
			collectFields(sub, out)
		}
	case OrExpr:
		for _, sub := range e.Exprs {
			collectFields(sub, out)
		}
	case NorExpr:
		for _, sub := range e.Exprs {
			collectFields(sub, out)
		}
	case NotExpr:
		collectFields(e.Expr, out)
	case ElemMatchExpr:
		out[e.Field] = struct{}{}
		collectFields(e.Sub, out)
	}
}

// Matches evaluates expr against doc, a Lite row rendered as a JSON-shaped
// map[string]any (the representation litefield.ExtractLiteData produces).
func Matches(expr Expr, doc map[string]any) bool {
	switch e := expr.(type) {
	case EqExpr:
		return equalValue(doc[e.Field], e.Value)
	case InExpr:
		for _, v := range e.Values {
			if equalValue(doc[e.Field], v) {
				return true
			}
		}
		return false
	case GtExpr:
		return greaterThan(doc[e.Field], e.Value)
	case AndExpr:
		for _, sub := range e.Exprs {
			if !Matches(sub, doc) {
				return false
			}
		}
		return true
	case OrExpr:
		for _, sub := range e.Exprs {
			if Matches(sub, doc) {
				return true
			}
		}
		return len(e.Exprs) == 0
	case NotExpr:
		return !Matches(e.Expr, doc)
	case NorExpr:
		for _, sub := range e.Exprs {
			if Matches(sub, doc) {
				return false
			}
		}
		return true
	case ElemMatchExpr:
		items, ok := doc[e.Field].([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			sub, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if Matches(e.Sub, sub) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func greaterThan(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af > bf
	}
	return fmt.Sprint(a) > fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
