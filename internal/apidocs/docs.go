// Package apidocs registers the inferd OpenAPI document with swag so the
// Swagger UI (built with -tags swagger) can serve it. Keep it in step with the
// handler annotations in internal/httpapi.
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "inferd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List catalog models",
                "parameters": [
                    {"type": "string", "description": "Case-insensitive filter on id, name or type", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/models/{id}": {
            "delete": {
                "tags": ["models"],
                "summary": "Unload a resident model",
                "parameters": [
                    {"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/{id}/load": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Load a catalog model into the cache",
                "parameters": [
                    {"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "Return 202 with an operation id", "name": "async", "in": "query"},
                    {"description": "Load options", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/types.LoadRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LoadResponse"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.OperationResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/{id}/predict": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["predict"],
                "summary": "Run one prediction",
                "parameters": [
                    {"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true},
                    {"description": "Input", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.PredictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.PredictResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/{id}/batch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["predict"],
                "summary": "Run a batch of predictions",
                "parameters": [
                    {"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true},
                    {"description": "Inputs", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.BatchResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/operations/{op}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Background preload state",
                "parameters": [
                    {"type": "string", "description": "Operation id", "name": "op", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.OperationResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Resident models and cache counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ModelConfig": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "sentiment-analysis"},
                "name": {"type": "string", "example": "Sentiment Analysis"},
                "version": {"type": "string", "example": "1.0.0"},
                "type": {"type": "string", "example": "classification"},
                "source": {"type": "string"},
                "input_shape": {"type": "array", "items": {"type": "integer"}},
                "output_shape": {"type": "array", "items": {"type": "integer"}},
                "labels": {"type": "array", "items": {"type": "string"}},
                "warmup": {"type": "boolean"},
                "preprocessor": {"type": "string"},
                "postprocessor": {"type": "string"},
                "sample_rate": {"type": "integer"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelConfig"}}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid JSON body"},
                "code": {"type": "integer", "example": 400}
            }
        },
        "types.LoadRequest": {
            "type": "object",
            "properties": {
                "warmup": {"type": "boolean", "example": true}
            }
        },
        "types.LoadResponse": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string"},
                "memory_bytes": {"type": "integer"},
                "loaded_at_unix": {"type": "integer"}
            }
        },
        "types.OperationResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "model_id": {"type": "string"},
                "state": {"type": "string", "example": "running"},
                "error": {"type": "string"}
            }
        },
        "types.PredictRequest": {
            "type": "object",
            "properties": {
                "values": {"type": "array", "items": {"type": "number"}},
                "shape": {"type": "array", "items": {"type": "integer"}},
                "text": {"type": "string"},
                "sample_rate": {"type": "integer"},
                "preprocessed": {"type": "boolean"}
            }
        },
        "types.PredictResponse": {
            "type": "object",
            "properties": {
                "predictions": {"type": "array", "items": {"type": "number"}},
                "probabilities": {"type": "array", "items": {"type": "number"}},
                "labels": {"type": "array", "items": {"type": "string"}},
                "confidence": {"type": "number"},
                "processing_time_ms": {"type": "number"}
            }
        },
        "types.BatchRequest": {
            "type": "object",
            "properties": {
                "inputs": {"type": "array", "items": {"$ref": "#/definitions/types.PredictRequest"}}
            }
        },
        "types.BatchResponse": {
            "type": "object",
            "properties": {
                "results": {"type": "array", "items": {"$ref": "#/definitions/types.PredictResponse"}}
            }
        },
        "types.ModelStatus": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string"},
                "loaded_at_unix": {"type": "integer"},
                "last_used_unix": {"type": "integer"},
                "usage_count": {"type": "integer"},
                "avg_inference_ms": {"type": "number"},
                "memory_bytes": {"type": "integer"},
                "inflight": {"type": "integer"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelStatus"}},
                "total_resident": {"type": "integer"},
                "capacity": {"type": "integer"},
                "memory_bytes": {"type": "integer"},
                "loads_total": {"type": "integer"},
                "evictions_total": {"type": "integer"},
                "state": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "inferd API",
	Description:      "HTTP API for model caching and inference.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
