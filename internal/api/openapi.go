package api

import (
	"github.com/mattjoyce/tokenforge/internal/command"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document with one invoke path per command.
func buildOpenAPIDoc(cmds []command.Descriptor) map[string]any {
	paths := map[string]any{}
	for _, cmd := range cmds {
		paths["/invoke/"+cmd.Name] = map[string]any{
			"post": buildInvokeOperation(cmd),
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Token Forge Shell",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"InvokeRequest":  invokeRequestSchema,
				"InvokeResponse": invokeResponseSchema,
			},
		},
	}
}

func buildInvokeOperation(cmd command.Descriptor) map[string]any {
	summary := cmd.Description
	if summary == "" {
		summary = cmd.Name
	}

	envelope := map[string]any{
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/InvokeResponse"},
			},
		},
	}
	described := func(desc string) map[string]any {
		out := map[string]any{"description": desc}
		for k, v := range envelope {
			out[k] = v
		}
		return out
	}

	okDesc := "Command completed"
	if cmd.Returns == command.ReturnsText {
		okDesc = "Command completed; result is a string"
	}

	return map[string]any{
		"operationId": cmd.Name,
		"summary":     summary,
		"requestBody": map[string]any{
			"required": false,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": "#/components/schemas/InvokeRequest"},
				},
			},
		},
		"responses": map[string]any{
			"200": described(okDesc),
			"400": described("Malformed invocation"),
			"409": described("Event could not be delivered"),
			"502": described("Native call or decoding failed"),
		},
		"security": []any{map[string]any{"BearerAuth": []string{}}},
	}
}

var invokeRequestSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":     map[string]any{"type": "string"},
		"window": map[string]any{"type": "string"},
		"args":   map[string]any{"type": "object"},
	},
	"additionalProperties": false,
}

var invokeResponseSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "command", "status"},
	"properties": map[string]any{
		"id":      map[string]any{"type": "string"},
		"command": map[string]any{"type": "string"},
		"status":  map[string]any{"enum": []string{"ok", "error"}},
		"result":  map[string]any{},
		"error":   map[string]any{"type": "string"},
		"kind": map[string]any{"enum": []string{
			"unknown_command", "native_call_failed", "encoding_error",
			"emit_failed", "invalid_args", "internal",
		}},
		"offset": map[string]any{"type": "integer"},
	},
}
