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

package litefield

import (
	"encoding/json"
	"fmt"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

const schemaCacheSize = 256

// schemaCache memoizes Extract by reflect.Type so repeated construction of
// the same class's schema (e.g. once per request) does not re-walk the
// struct tags every time.
var schemaCache, _ = lru.New[reflect.Type, Schema](schemaCacheSize)

// registered records every type that has called MustRegister. It is only
// written; no check in this package reads it back.
var registered = map[reflect.Type]bool{}

// Extract derives the Lite Schema for class by walking its struct tags
// once via reflection, then caches the result keyed by class. class must
// be a struct type or a pointer to one; pointers are dereferenced first.
func Extract(class reflect.Type) Schema {
	for class.Kind() == reflect.Ptr {
		class = class.Elem()
	}

	if cached, ok := schemaCache.Get(class); ok {
		return cached
	}

	schema := extract(class)
	schemaCache.Add(class, schema)
	return schema
}

func extract(class reflect.Type) Schema {
	fields := map[string]struct{}{}
	for _, f := range systemFields {
		fields[f] = struct{}{}
	}

	hasDeletedAt, hasDomainFields := walkTaggedFields(class, fields)

	if hasDeletedAt {
		for _, f := range softDeleteFields {
			fields[f] = struct{}{}
		}
	}

	if zero := reflect.New(class).Interface(); zero != nil {
		if ci, ok := zero.(CompositeIndexed); ok {
			for _, group := range ci.CompositeIndexes() {
				if len(group) > 0 {
					hasDomainFields = true
				}
				for _, f := range group {
					fields[f] = struct{}{}
				}
			}
		}
		if qf, ok := zero.(QueryFielded); ok {
			for _, f := range qf.QueryFields() {
				fields[f] = struct{}{}
				hasDomainFields = true
			}
		}
	}

	return newSchema(fields, hasDomainFields)
}

// walkTaggedFields collects lite-tagged field names into fields,
// descending into anonymous embedded structs the way encoding/json
// promotes their fields.
func walkTaggedFields(t reflect.Type, fields map[string]struct{}) (hasDeletedAt, hasDomainFields bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		if f.Anonymous && f.Tag.Get("json") == "" {
			ft := f.Type
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				da, dom := walkTaggedFields(ft, fields)
				hasDeletedAt = hasDeletedAt || da
				hasDomainFields = hasDomainFields || dom
				continue
			}
		}

		name := jsonFieldName(f)
		if name == "" {
			continue
		}

		if name == "deleted_at" {
			hasDeletedAt = true
		}

		switch f.Tag.Get("lite") {
		case "indexed", "query":
			fields[name] = struct{}{}
			hasDomainFields = true
		}
	}
	return hasDeletedAt, hasDomainFields
}

// jsonFieldName returns the JSON field name a struct field serializes to,
// or "" if it is unexported or tagged json:"-".
func jsonFieldName(f reflect.StructField) string {
	if f.PkgPath != "" {
		return ""
	}

	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if tag == "" {
		return f.Name
	}

	name := tag
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			name = tag[:i]
			break
		}
	}
	if name == "" {
		return f.Name
	}
	return name
}

// MustRegister records that class has a Lite schema and panics if Extract
// would return an empty one. Call this from each dual-storage class's
// package init(). It is the build-time self-check the derivation rules require:
// a class silently missing its schema would otherwise only surface as a
// query rejecting every field at runtime.
func MustRegister(class reflect.Type) {
	for class.Kind() == reflect.Ptr {
		class = class.Elem()
	}

	schema := Extract(class)
	if !schema.HasDomainFields() {
		panic(fmt.Sprintf("litefield: %s has no Lite schema (missing lite struct tags?)", class.String()))
	}
	registered[class] = true
}

// ExtractLiteData returns the subset of doc's JSON representation limited
// to schema's field names. The primary path marshals doc to JSON and
// re-unmarshals into a map, then deletes any key outside the schema; on
// marshal failure it falls back to per-field reflection, skipping any
// field whose value is a nil interface or invalid reflect.Value (the
// framework-internal sentinels the derivation rule calls out).
func ExtractLiteData(doc any, schema Schema) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err == nil {
		var full map[string]any
		if err := json.Unmarshal(raw, &full); err == nil {
			lite := make(map[string]any, schema.Len())
			for _, f := range schema.Fields() {
				if v, ok := full[f]; ok {
					lite[f] = v
				}
			}
			return lite, nil
		}
	}

	return extractLiteDataByReflection(doc, schema)
}

func extractLiteDataByReflection(doc any, schema Schema) (map[string]any, error) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("litefield: cannot extract from nil %s", v.Type())
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("litefield: %s is not a struct", v.Kind())
	}

	lite := make(map[string]any, schema.Len())
	collectFieldValues(v, schema, lite)
	return lite, nil
}

func collectFieldValues(v reflect.Value, schema Schema, lite map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		if sf.Anonymous && sf.Tag.Get("json") == "" {
			fv := v.Field(i)
			for fv.Kind() == reflect.Ptr && !fv.IsNil() {
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				collectFieldValues(fv, schema, lite)
				continue
			}
		}

		name := jsonFieldName(sf)
		if name == "" || !schema.Has(name) {
			continue
		}

		fv := v.Field(i)
		if !fv.IsValid() {
			continue
		}
		if fv.Kind() == reflect.Interface && fv.IsNil() {
			continue
		}

		lite[name] = fv.Interface()
	}
}
