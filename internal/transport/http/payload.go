package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"exconnector/internal/correlation"
	"exconnector/internal/gateway/exchange"
)

const decimalPattern = `^[0-9]+([.][0-9]+)?$`

var orderSchemaJSON = `{
	"type": "object",
	"required": ["symbol", "side", "quantity"],
	"additionalProperties": false,
	"properties": {
		"account":       {"type": "string"},
		"symbol":        {"type": "string", "minLength": 1},
		"side":          {"enum": ["buy", "sell"]},
		"type":          {"enum": ["market", "limit", "stop", "stop_limit"]},
		"time_in_force": {"enum": ["GTC", "IOC", "FOK", "DAY"]},
		"quantity":      {"type": ["number", "string"], "exclusiveMinimum": 0, "pattern": "` + decimalPattern + `"},
		"price":         {"type": ["number", "string"], "exclusiveMinimum": 0, "pattern": "` + decimalPattern + `"},
		"stop_price":    {"type": ["number", "string"], "exclusiveMinimum": 0, "pattern": "` + decimalPattern + `"},
		"accept_on_new": {"type": "boolean"}
	}
}`

var cancelSchemaJSON = `{
	"type": "object",
	"required": ["symbol"],
	"additionalProperties": false,
	"anyOf": [
		{"required": ["client_order_id"]},
		{"required": ["order_id"]}
	],
	"properties": {
		"account":         {"type": "string"},
		"client_order_id": {"type": "string", "minLength": 1},
		"order_id":        {"type": "string", "minLength": 1},
		"symbol":          {"type": "string", "minLength": 1},
		"side":            {"enum": ["buy", "sell"]},
		"quantity":        {"type": ["number", "string"], "exclusiveMinimum": 0, "pattern": "` + decimalPattern + `"}
	}
}`

var (
	orderSchema  = mustCompile("order.json", orderSchemaJSON)
	cancelSchema = mustCompile("cancel.json", cancelSchemaJSON)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// coerceObject accepts either the object itself or the object wrapped under key.
func coerceObject(raw, key string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("request body is empty")
	}
	if !gjson.Valid(raw) {
		return "", invalid("request body is not valid JSON")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return "", invalid("request body must be a JSON object")
	}
	if inner := parsed.Get(key); inner.Exists() {
		if !inner.IsObject() {
			return "", invalid(key + " must be an object")
		}
		return inner.Raw, nil
	}
	return raw, nil
}

// decodeOrder coerces, normalises, validates and decodes an order payload.
func decodeOrder(raw string) (exchange.OrderRequest, error) {
	var req exchange.OrderRequest
	doc, err := normalised(raw, "order")
	if err != nil {
		return req, err
	}
	if _, ok := doc["type"]; !ok {
		doc["type"] = string(exchange.OrderTypeMarket)
		if _, hasPrice := doc["price"]; hasPrice {
			doc["type"] = string(exchange.OrderTypeLimit)
		}
	}
	if err := orderSchema.Validate(doc); err != nil {
		return req, invalid(err.Error())
	}
	return req, remarshal(doc, &req)
}

func decodeCancel(raw string) (exchange.CancelRequest, error) {
	var req exchange.CancelRequest
	doc, err := normalised(raw, "cancel")
	if err != nil {
		return req, err
	}
	if err := cancelSchema.Validate(doc); err != nil {
		return req, invalid(err.Error())
	}
	return req, remarshal(doc, &req)
}

func normalised(raw, key string) (map[string]any, error) {
	obj, err := coerceObject(raw, key)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid(err.Error())
	}
	lower(doc, "side")
	lower(doc, "type")
	if tif, ok := doc["time_in_force"].(string); ok {
		doc["time_in_force"] = strings.ToUpper(strings.TrimSpace(tif))
	}
	return doc, nil
}

func lower(doc map[string]any, key string) {
	if s, ok := doc[key].(string); ok {
		doc[key] = strings.ToLower(strings.TrimSpace(s))
	}
}

func remarshal(doc map[string]any, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return invalid(err.Error())
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", correlation.ErrInvalidRequest, msg)
}
