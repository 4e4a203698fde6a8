//
// Tencent is pleased to support the open source community by making trpc-crew-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-crew-go is licensed under the Apache License Version 2.0.
//
//

// Package schema generates JSON schemas for tool declarations from Go
// types via reflection.
package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-crew-go/log"
	"trpc.group/trpc-go/trpc-crew-go/tool"
)

// Generate builds a JSON schema for t. Struct fields follow their json
// tags; jsonschema tags add descriptions, enum values, and required
// markers. Recursive struct types are lifted into $defs and referenced.
func Generate(t reflect.Type) *tool.Schema {
	g := &generator{
		seen: make(map[reflect.Type]string),
		defs: make(map[string]*tool.Schema),
	}
	s := g.root(t)
	if len(g.defs) > 0 {
		s.Defs = g.defs
	}
	return s
}

// generator tracks visited struct types so self-referential types become
// $defs references instead of infinite expansions.
type generator struct {
	seen map[reflect.Type]string
	defs map[string]*tool.Schema
}

// root generates the schema of the top-level type. Only the root object
// records required properties and honors jsonschema tags; nested structs
// are emitted with properties alone.
func (g *generator) root(t reflect.Type) *tool.Schema {
	switch t.Kind() {
	case reflect.Struct:
		return g.rootStruct(t)
	case reflect.Ptr:
		return g.field(t.Elem())
	default:
		return g.field(t)
	}
}

func (g *generator) rootStruct(t reflect.Type) *tool.Schema {
	if name, ok := g.seen[t]; ok {
		return &tool.Schema{Ref: "#/$defs/" + name}
	}
	name := defName(t)
	g.seen[t] = name

	s := &tool.Schema{Type: "object"}
	properties := map[string]*tool.Schema{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fieldName, omitEmpty, skip := jsonName(f)
		if skip {
			continue
		}

		fs := g.field(f.Type)
		requiredByTag := false
		if fs.Ref == "" {
			var err error
			requiredByTag, err = applyTag(f.Type, f.Tag, fs)
			if err != nil {
				log.Errorf("schema tag on field %s: %v", fieldName, err)
			}
		}
		if (f.Type.Kind() != reflect.Ptr && !omitEmpty) || requiredByTag {
			required = append(required, fieldName)
		}
		properties[fieldName] = fs
	}

	s.Properties = properties
	if len(required) > 0 {
		s.Required = required
	}

	if isRecursive(t) {
		def := &tool.Schema{
			Type:       s.Type,
			Properties: make(map[string]*tool.Schema, len(s.Properties)),
			Required:   s.Required,
		}
		for k, v := range s.Properties {
			def.Properties[k] = v
		}
		g.defs[name] = def
	}
	return s
}

// field generates the schema of a nested value.
func (g *generator) field(t reflect.Type) *tool.Schema {
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{Type: "array", Items: g.field(t.Elem())}
	case reflect.Map:
		return &tool.Schema{Type: "object", AdditionalProperties: g.field(t.Elem())}
	case reflect.Ptr:
		return g.field(t.Elem())
	case reflect.Struct:
		return g.fieldStruct(t)
	default:
		return &tool.Schema{Type: "object"}
	}
}

func (g *generator) fieldStruct(t reflect.Type) *tool.Schema {
	if name, ok := g.seen[t]; ok {
		return &tool.Schema{Ref: "#/$defs/" + name}
	}

	recursive := isRecursive(t)
	var name string
	if recursive {
		name = defName(t)
		g.seen[t] = name
	}

	s := &tool.Schema{Type: "object", Properties: make(map[string]*tool.Schema)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fieldName, _, skip := jsonName(f)
		if skip {
			continue
		}
		s.Properties[fieldName] = g.field(f.Type)
	}

	if !recursive {
		return s
	}
	g.defs[name] = s
	return &tool.Schema{Ref: "#/$defs/" + name}
}

// jsonName resolves the serialized field name from the json tag. skip is
// true for fields tagged json:"-".
func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = f.Name
	if tag == "" {
		return name, false, false
	}
	if idx := strings.Index(tag, ","); idx != -1 {
		if tag[:idx] != "" {
			name = tag[:idx]
		}
		return name, strings.Contains(tag[idx:], "omitempty"), false
	}
	return tag, false, false
}

// applyTag applies a jsonschema struct tag to the generated schema.
// Supported entries: description=<text>, enum=<value> (repeatable, parsed
// to the field's Go type), and a bare required marker.
func applyTag(fieldType reflect.Type, tag reflect.StructTag, s *tool.Schema) (requiredByTag bool, err error) {
	raw := tag.Get("jsonschema")
	if raw == "" {
		return false, nil
	}
	for _, item := range strings.Split(raw, ",") {
		kv := strings.SplitN(item, "=", 2)
		switch {
		case len(kv) == 2 && kv[0] == "description":
			s.Description = kv[1]
		case len(kv) == 2 && kv[0] == "enum":
			v, err := parseEnum(fieldType, kv[1])
			if err != nil {
				return requiredByTag, err
			}
			s.Enum = append(s.Enum, v)
		case len(kv) == 1 && kv[0] == "required":
			requiredByTag = true
		}
	}
	return requiredByTag, nil
}

func parseEnum(t reflect.Type, value string) (any, error) {
	switch t.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as integer: %w", value, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as number: %w", value, err)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as bool: %w", value, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for field type %v", t)
	}
}

// isRecursive reports whether t reaches itself through exported fields.
func isRecursive(t reflect.Type) bool {
	return refersTo(t, t, make(map[reflect.Type]bool))
}

func refersTo(target, current reflect.Type, visited map[reflect.Type]bool) bool {
	if visited[current] {
		return false
	}
	visited[current] = true

	switch current.Kind() {
	case reflect.Struct:
		for i := 0; i < current.NumField(); i++ {
			f := current.Field(i)
			if !f.IsExported() {
				continue
			}
			ft := f.Type
			for ft.Kind() == reflect.Ptr || ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
				ft = ft.Elem()
			}
			if ft == target {
				return true
			}
			if ft.Kind() == reflect.Struct && refersTo(target, ft, visited) {
				return true
			}
		}
	case reflect.Ptr, reflect.Slice, reflect.Array:
		et := current.Elem()
		for et.Kind() == reflect.Ptr {
			et = et.Elem()
		}
		if et == target {
			return true
		}
		if et.Kind() == reflect.Struct && refersTo(target, et, visited) {
			return true
		}
	}
	return false
}

func defName(t reflect.Type) string {
	if t.Name() != "" {
		return strings.ToLower(t.Name())
	}
	return "anonymous"
}
