// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/documents/analyze": {
            "post": {
                "tags": ["documents"],
                "summary": "Analyze a document",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "400": {"description": "Missing file or not a PDF", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "422": {"description": "Unreadable PDF", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/documents/convert": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Convert a document",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "boolean", "name": "premium_opt_in", "in": "formData"},
                    {"type": "boolean", "name": "require_expensive", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "402": {"description": "Insufficient credits", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "403": {"description": "Tier limit or guardrail rejection", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "422": {"description": "Unreadable PDF or blocked by QA", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "429": {"description": "Engine rate limited", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "502": {"description": "Engine failure", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "503": {"description": "Credit store unavailable", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "504": {"description": "Engine timeout", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/credits": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["credits"],
                "summary": "Get credit balance",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/credits/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["credits"],
                "summary": "List ledger entries, newest first",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/credits/history/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["credits"],
                "summary": "Download the ledger as a statement",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv"],
                "parameters": [
                    {"type": "string", "enum": ["xlsx", "csv"], "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}}
                }
            }
        },
        "/admin/flags": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Current guardrail flags",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/admin/flags/emergency-disable": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Turn the expensive engine off immediately",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.EmergencyDisableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/admin/flags/adobe": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Enable or disable the expensive engine",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.SetAdobeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/admin/credits/{user_id}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Add credits to a user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "user_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.GrantCreditsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.APIResponse"}},
                    "400": {"description": "Invalid amount", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        },
        "/admin/qa/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Recent QA verdicts, newest first",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "detail": {"type": "string"}
            }
        },
        "handler.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/handler.APIError"}
            }
        },
        "handler.EmergencyDisableRequest": {
            "type": "object",
            "required": ["reason"],
            "properties": {
                "reason": {"type": "string", "example": "Adobe invoice spike"}
            }
        },
        "handler.SetAdobeRequest": {
            "type": "object",
            "required": ["enabled"],
            "properties": {
                "enabled": {"type": "boolean", "example": true},
                "reason": {"type": "string", "example": "incident resolved"}
            }
        },
        "handler.GrantCreditsRequest": {
            "type": "object",
            "required": ["amount", "reason"],
            "properties": {
                "amount": {"type": "number", "example": 100},
                "reason": {"type": "string", "example": "purchase #1042"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "convertflow API",
	Description:      "PDF conversion routing, credit billing and QA guardrails.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
