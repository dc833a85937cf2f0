// Package jsonxpath implements the JsonXPathExtractionStrategy (§4.4),
// the XPath-flavored sibling of pkg/extract/jsoncss. It promotes the
// teacher's indirect antchfx/htmlquery and antchfx/xpath dependencies
// (listed in go.mod but unused by any teacher code) to direct use.
package jsonxpath

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// FieldType controls how a matched node's value is read.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldHTML       FieldType = "html"
	FieldAttr       FieldType = "attribute"
	FieldList       FieldType = "list"        // repeat XPath, one scalar per match
	FieldNested     FieldType = "nested"      // single object built from Fields under XPath
	FieldNestedList FieldType = "nested_list" // repeat XPath, one object per match
	FieldRegex      FieldType = "regex"       // apply Pattern to the matched text
)

// Transform is a post-processing step applied to a scalar field value
// after extraction, before Default is considered.
type Transform string

const (
	TransformStrip Transform = "strip"
	TransformLower Transform = "lower"
	TransformUpper Transform = "upper"
	TransformInt   Transform = "int"
	TransformFloat Transform = "float"
	TransformJSON  Transform = "json"
)

// Field describes one field of the schema.
type Field struct {
	Name      string
	XPath     string // relative to the enclosing scope; "." means the scope itself
	Type      FieldType
	Attribute string
	Fields    []Field // used when Type == FieldNested or FieldNestedList

	Pattern string // used when Type == FieldRegex
	Group   int    // regex submatch group index; 0 is the whole match

	Transform Transform
	Default   any
}

// Schema is the root of a JsonXPath extraction schema.
type Schema struct {
	BaseXPath string // "" means the document root
	Fields    []Field
}

type Strategy struct {
	Schema Schema
}

func New(schema Schema) *Strategy {
	return &Strategy{Schema: schema}
}

func (s *Strategy) Name() string { return "json_xpath" }

func (s *Strategy) Extract(ctx context.Context, htmlDoc string) (any, error) {
	doc, err := htmlquery.Parse(strings.NewReader(htmlDoc))
	if err != nil {
		return nil, fmt.Errorf("jsonxpath: parse html: %w", err)
	}

	scopes := []*html.Node{doc}
	if s.Schema.BaseXPath != "" {
		scopes = htmlquery.Find(doc, s.Schema.BaseXPath)
	}

	if len(scopes) > 1 {
		var out []map[string]any
		for _, n := range scopes {
			out = append(out, extractFields(n, s.Schema.Fields))
		}
		return out, nil
	}
	if len(scopes) == 0 {
		return map[string]any{}, nil
	}
	return extractFields(scopes[0], s.Schema.Fields), nil
}

func extractFields(scope *html.Node, fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = extractField(scope, f)
	}
	return out
}

func extractField(scope *html.Node, f Field) any {
	var nodes []*html.Node
	if f.XPath == "" || f.XPath == "." {
		nodes = []*html.Node{scope}
	} else {
		nodes = htmlquery.Find(scope, f.XPath)
	}

	switch f.Type {
	case FieldNestedList:
		var list []map[string]any
		for _, n := range nodes {
			list = append(list, extractFields(n, f.Fields))
		}
		return list
	case FieldList:
		var list []any
		for _, n := range nodes {
			list = append(list, applyTransform(scalarValue(n, f), f))
		}
		return list
	case FieldNested:
		if len(nodes) == 0 {
			return map[string]any{}
		}
		return extractFields(nodes[0], f.Fields)
	default: // FieldText, FieldHTML, FieldAttr, FieldRegex
		if len(nodes) == 0 {
			return withDefault("", f.Default)
		}
		return withDefault(applyTransform(scalarValue(nodes[0], f), f), f.Default)
	}
}

func scalarValue(n *html.Node, f Field) string {
	switch f.Type {
	case FieldHTML:
		return strings.TrimSpace(htmlquery.OutputHTML(n, true))
	case FieldAttr:
		return htmlquery.SelectAttr(n, f.Attribute)
	case FieldRegex:
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return ""
		}
		match := re.FindStringSubmatch(htmlquery.InnerText(n))
		if match == nil || f.Group >= len(match) {
			return ""
		}
		return match[f.Group]
	default: // FieldText
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
}

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

func withDefault(value any, def any) any {
	if s, ok := value.(string); ok && s == "" && def != nil {
		return def
	}
	return value
}
