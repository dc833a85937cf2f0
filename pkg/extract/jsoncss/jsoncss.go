// Package jsoncss implements the JsonCssExtractionStrategy (§4.4):
// a declarative field-selector schema evaluated with goquery,
// generalizing internal/crawler/selector.go's single-purpose link
// selector into arbitrary nested field extraction.
package jsoncss

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldType controls how a matched element's value is read.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldHTML       FieldType = "html"
	FieldAttr       FieldType = "attribute"
	FieldList       FieldType = "list"        // repeat Selector, one scalar per match
	FieldNested     FieldType = "nested"      // single object built from Fields under Selector
	FieldNestedList FieldType = "nested_list" // repeat Selector, one object per match
	FieldRegex      FieldType = "regex"       // apply Pattern to the matched text
)

// Transform is a post-processing step applied to a scalar field value
// after extraction, before Default is considered.
type Transform string

const (
	TransformStrip  Transform = "strip"
	TransformLower  Transform = "lower"
	TransformUpper  Transform = "upper"
	TransformInt    Transform = "int"
	TransformFloat  Transform = "float"
	TransformJSON   Transform = "json"
)

// Field describes one field of the schema.
type Field struct {
	Name      string
	Selector  string // CSS selector, relative to the enclosing scope; "" means the scope itself
	Type      FieldType
	Attribute string  // used when Type == FieldAttr
	Fields    []Field // used when Type == FieldNested or FieldNestedList

	Pattern string // used when Type == FieldRegex
	Group   int    // regex submatch group index; 0 is the whole match

	Transform Transform // applied to the raw scalar value before Default substitutes
	Default   any       // used when the extracted (and transformed) value is empty
}

// Schema is the root of a JsonCss extraction schema.
type Schema struct {
	BaseSelector string // root scope; "" means the whole document
	Fields       []Field
}

// Strategy evaluates a Schema against HTML.
type Strategy struct {
	Schema Schema
}

func New(schema Schema) *Strategy {
	return &Strategy{Schema: schema}
}

func (s *Strategy) Name() string { return "json_css" }

func (s *Strategy) Extract(ctx context.Context, html string) (any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("jsoncss: parse html: %w", err)
	}

	scope := doc.Selection
	if s.Schema.BaseSelector != "" {
		scope = doc.Find(s.Schema.BaseSelector)
	}

	if scope.Length() > 1 {
		var out []map[string]any
		scope.Each(func(_ int, sel *goquery.Selection) {
			out = append(out, extractFields(sel, s.Schema.Fields))
		})
		return out, nil
	}

	return extractFields(scope, s.Schema.Fields), nil
}

func extractFields(scope *goquery.Selection, fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = extractField(scope, f)
	}
	return out
}

func extractField(scope *goquery.Selection, f Field) any {
	target := scope
	if f.Selector != "" {
		target = scope.Find(f.Selector)
	}

	switch f.Type {
	case FieldNestedList:
		var list []map[string]any
		target.Each(func(_ int, sel *goquery.Selection) {
			list = append(list, extractFields(sel, f.Fields))
		})
		return list
	case FieldList:
		var list []any
		target.Each(func(_ int, sel *goquery.Selection) {
			list = append(list, applyTransform(scalarValue(sel, f), f))
		})
		return list
	case FieldNested:
		return extractFields(target.First(), f.Fields)
	default: // FieldText, FieldHTML, FieldAttr, FieldRegex
		return withDefault(applyTransform(scalarValue(target.First(), f), f), f.Default)
	}
}

// scalarValue reads the raw (pre-transform) value for a single-element
// selection according to f.Type.
func scalarValue(sel *goquery.Selection, f Field) string {
	switch f.Type {
	case FieldHTML:
		html, _ := sel.Html()
		return strings.TrimSpace(html)
	case FieldAttr:
		val, _ := sel.Attr(f.Attribute)
		return val
	case FieldRegex:
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return ""
		}
		match := re.FindStringSubmatch(sel.Text())
		if match == nil || f.Group >= len(match) {
			return ""
		}
		return match[f.Group]
	default: // FieldText
		return strings.TrimSpace(sel.Text())
	}
}

// applyTransform runs f.Transform against raw, returning the raw
// string unchanged if Transform is empty or the conversion fails.
func applyTransform(raw string, f Field) any {
	switch f.Transform {
	case TransformStrip:
		return strings.TrimSpace(raw)
	case TransformLower:
		return strings.ToLower(raw)
	case TransformUpper:
		return strings.ToUpper(raw)
	case TransformInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return raw
		}
		return n
	case TransformFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return raw
		}
		return v
	case TransformJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return raw
		}
		return v
	default:
		return raw
	}
}

// withDefault substitutes def when value is the empty string (the only
// "nothing extracted" shape a scalar field can take before transform
// conversions run).
func withDefault(value any, def any) any {
	if s, ok := value.(string); ok && s == "" && def != nil {
		return def
	}
	return value
}
