package jsonxpath

import (
	"context"
	"testing"
)

const fixture = `
<html><body>
  <ul>
    <li class="product"><h2>Widget</h2><span class="price">9.99</span></li>
    <li class="product"><h2>Gadget</h2><span class="price">19.99</span></li>
  </ul>
</body></html>`

func TestExtractListViaXPath(t *testing.T) {
	schema := Schema{
		BaseXPath: "//li[@class='product']",
		Fields: []Field{
			{Name: "name", XPath: ".//h2", Type: FieldText},
			{Name: "price", XPath: ".//span[@class='price']", Type: FieldText},
		},
	}

	result, err := New(schema).Extract(context.Background(), fixture)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	items, ok := result.([]map[string]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v (%T)", result, result)
	}
	if items[0]["name"] != "Widget" || items[0]["price"] != "9.99" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1]["name"] != "Gadget" || items[1]["price"] != "19.99" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestExtractNestedListAndScalarListViaXPath(t *testing.T) {
	schema := Schema{
		Fields: []Field{
			{Name: "products", XPath: "//li[@class='product']", Type: FieldNestedList, Fields: []Field{
				{Name: "name", XPath: ".//h2", Type: FieldText},
			}},
			{Name: "names", XPath: "//li[@class='product']//h2", Type: FieldList},
		},
	}

	result, err := New(schema).Extract(context.Background(), fixture)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	obj := result.(map[string]any)

	products, ok := obj["products"].([]map[string]any)
	if !ok || len(products) != 2 {
		t.Fatalf("expected 2 nested products, got %+v", obj["products"])
	}

	names, ok := obj["names"].([]any)
	if !ok || len(names) != 2 || names[0] != "Widget" {
		t.Fatalf("expected 2 scalar names starting with Widget, got %+v", obj["names"])
	}
}

func TestExtractRegexFieldAndDefaultViaXPath(t *testing.T) {
	schema := Schema{
		BaseXPath: "//li[@class='product']",
		Fields: []Field{
			{Name: "whole_dollars", XPath: ".//span[@class='price']", Type: FieldRegex, Pattern: `(\d+)\.\d+`, Group: 1, Transform: TransformInt},
			{Name: "missing", XPath: ".//nope", Type: FieldText, Default: "n/a"},
		},
	}

	result, err := New(schema).Extract(context.Background(), fixture)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	items := result.([]map[string]any)
	if items[0]["whole_dollars"] != 9 {
		t.Fatalf("expected whole_dollars=9, got %v (%T)", items[0]["whole_dollars"], items[0]["whole_dollars"])
	}
	if items[0]["missing"] != "n/a" {
		t.Fatalf("expected default n/a, got %v", items[0]["missing"])
	}
}
