package handlers

import (
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schemas only check the shape of a body. Business rules (positive amount,
// non-blank currency) stay in the payments service.
const schemaCreatePayment = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["amount", "currency"],
  "properties": {
    "amount":   { "type": "integer" },
    "currency": { "type": "string" }
  }
}`

const schemaCancelPayment = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "reason": { "type": "string" }
  }
}`

var (
	createPaymentSchema = mustSchema(schemaCreatePayment)
	cancelPaymentSchema = mustSchema(schemaCancelPayment)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return s
}

// validateBody checks body against schema and joins every violation into one
// error message.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.New("invalid JSON body")
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("invalid request: " + strings.Join(msgs, "; "))
}
