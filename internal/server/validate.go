package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
)

const maxBodyBytes = 1 << 20

const chatSchema = `{
	"type": "object",
	"properties": {
		"message": {"type": "string", "minLength": 1, "maxLength": 8000},
		"surfaceId": {"type": "string", "maxLength": 128}
	},
	"required": ["message"]
}`

const profileSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 100},
		"niche": {"type": "string", "minLength": 1, "maxLength": 200}
	},
	"required": ["name", "niche"]
}`

const maiyabotSchema = `{
	"type": "object",
	"properties": {
		"messages": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"role": {"type": "string", "enum": ["user", "assistant"]},
					"content": {"type": "string"}
				},
				"required": ["role", "content"]
			}
		},
		"name": {"type": "string"},
		"niche": {"type": "string"},
		"prompt": {"type": "string"},
		"summarize": {"type": "boolean"}
	}
}`

// Prompt length is checked by the dispatcher so the endpoint can answer
// with its own message.
const promptSchema = `{
	"type": "object",
	"properties": {
		"prompt": {"type": "string", "maxLength": 4000}
	}
}`

type schemas struct {
	chat     *gojsonschema.Schema
	profile  *gojsonschema.Schema
	maiyabot *gojsonschema.Schema
	prompt   *gojsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compile := func(name, src string) (*gojsonschema.Schema, error) {
		sc, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("%s schema: %w", name, err)
		}
		return sc, nil
	}
	var s schemas
	var err error
	if s.chat, err = compile("chat", chatSchema); err != nil {
		return nil, err
	}
	if s.profile, err = compile("profile", profileSchema); err != nil {
		return nil, err
	}
	if s.maiyabot, err = compile("maiyabot", maiyabotSchema); err != nil {
		return nil, err
	}
	if s.prompt, err = compile("prompt", promptSchema); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeBody validates the JSON body against schema and decodes it into dst.
// Every failure is a ValidationError.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Validation("request body too large")
	}
	if !json.Valid(body) {
		return apperr.Validation("invalid JSON body")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.Validation("invalid JSON body")
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return apperr.Validation(strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}
