// Package docs holds the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g internal/platform/httpserver/server.go -o internal/platform/httpserver/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/pipeline-runs": {
            "post": {
                "description": "Validates the request, persists a pending run and queues prompt generation. A run that fails during intake is still returned with status failed.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["video-pipeline"],
                "summary": "Start a product video pipeline run",
                "parameters": [
                    {
                        "description": "Product details and source image",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/httptransport.StartPipelineRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/httptransport.StartPipelineResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/v1/pipeline-runs/{run_id}": {
            "get": {
                "description": "Returns the current snapshot of one run, including the output URL once completed.",
                "produces": ["application/json"],
                "tags": ["video-pipeline"],
                "summary": "Get pipeline run status",
                "parameters": [
                    {"type": "string", "description": "Run id", "name": "run_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.GetPipelineRunResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/v1/prompts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["video-pipeline"],
                "summary": "List prompts generated for a requester",
                "parameters": [
                    {"type": "string", "description": "Requester email", "name": "email", "in": "query", "required": true},
                    {"type": "integer", "description": "Max items (1-10)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.ListPromptsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "httptransport.StartPipelineRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "email": {"type": "string"},
                "image_url": {"type": "string"},
                "duration_seconds": {"type": "integer"},
                "skip_image_edit": {"type": "boolean"},
                "category": {"type": "string"},
                "force_new_prompt": {"type": "boolean"}
            }
        },
        "httptransport.StartPipelineResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "run_id": {"type": "string"}
            }
        },
        "httptransport.PipelineRunDTO": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "status": {"type": "string"},
                "title": {"type": "string"},
                "email": {"type": "string"},
                "image_url": {"type": "string"},
                "duration_seconds": {"type": "integer"},
                "skip_image_edit": {"type": "boolean"},
                "category": {"type": "string"},
                "prompt_id": {"type": "string"},
                "output_url": {"type": "string"},
                "error_message": {"type": "string"},
                "failure_kind": {"type": "string"},
                "notification_note": {"type": "string"},
                "notified_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "httptransport.GetPipelineRunResponse": {
            "type": "object",
            "properties": {
                "run": {"$ref": "#/definitions/httptransport.PipelineRunDTO"}
            }
        },
        "httptransport.PromptDTO": {
            "type": "object",
            "properties": {
                "prompt_id": {"type": "string"},
                "title": {"type": "string"},
                "prompt_text": {"type": "string"},
                "model_id": {"type": "string"},
                "category": {"type": "string"},
                "approved": {"type": "boolean"},
                "run_id": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "httptransport.ListPromptsResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/httptransport.PromptDTO"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Turntable API",
	Description:      "Product video pipeline: prompt generation, image edit and video generation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
