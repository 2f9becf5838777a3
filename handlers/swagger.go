package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the API documentation endpoints.
// - GET /swagger/index.html  -> Swagger UI page loading the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>website content API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "website content API", "version": "v1.0.0" },
  "components": {
    "parameters": {
      "collection": { "name": "collection", "in": "path", "required": true, "schema": { "type": "string", "enum": ["blogs", "services", "jobs"] } },
      "imageId": { "name": "id", "in": "path", "required": true, "schema": { "type": "string", "pattern": "^[0-9a-f]{24}$" } },
      "ifNoneMatch": { "name": "If-None-Match", "in": "header", "schema": { "type": "string" } }
    }
  },
  "paths": {
    "/api/content/{collection}": {
      "get": {
        "summary": "List a collection (conditional)",
        "parameters": [
          { "$ref": "#/components/parameters/collection" },
          { "$ref": "#/components/parameters/ifNoneMatch" },
          { "name": "includeUnpublished", "in": "query", "schema": { "type": "boolean" }, "description": "admin listing, never cached" }
        ],
        "responses": { "200": { "description": "items" }, "304": { "description": "not modified" }, "400": { "description": "unknown collection" } }
      },
      "post": {
        "summary": "Create (no id) or update (id present) an item",
        "parameters": [ { "$ref": "#/components/parameters/collection" } ],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "id": { "type": "string" } }, "additionalProperties": true } } } },
        "responses": { "200": { "description": "updated" }, "201": { "description": "created" }, "400": { "description": "invalid payload" } }
      },
      "delete": {
        "summary": "Delete an item (idempotent)",
        "parameters": [ { "$ref": "#/components/parameters/collection" }, { "name": "id", "in": "query", "required": true, "schema": { "type": "string" } } ],
        "responses": { "204": { "description": "deleted or absent" }, "400": { "description": "missing id" } }
      }
    },
    "/api/content/{collection}/{id}": {
      "get": {
        "summary": "Get one item (conditional)",
        "parameters": [ { "$ref": "#/components/parameters/collection" }, { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } }, { "$ref": "#/components/parameters/ifNoneMatch" } ],
        "responses": { "200": { "description": "item" }, "304": { "description": "not modified" }, "404": { "description": "not found" } }
      }
    },
    "/api/content/{collection}/reorder": {
      "post": {
        "summary": "Move an ordered item up or down",
        "parameters": [ { "$ref": "#/components/parameters/collection" } ],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "required": ["id", "direction"], "properties": { "id": { "type": "string" }, "direction": { "type": "string", "enum": ["up", "down"] } } } } } },
        "responses": { "200": { "description": "reordered" }, "400": { "description": "invalid request" }, "404": { "description": "not found" } }
      }
    },
    "/api/jobs": {
      "post": {
        "summary": "Create or update a job with an optional image",
        "requestBody": { "content": { "multipart/form-data": { "schema": { "type": "object", "properties": { "id": { "type": "string" }, "data": { "type": "string", "description": "JSON object" }, "file": { "type": "string", "format": "binary" } } } } } },
        "responses": { "200": { "description": "updated" }, "201": { "description": "created" }, "400": { "description": "invalid payload" } }
      }
    },
    "/api/images": {
      "get": {
        "summary": "List images (conditional)",
        "parameters": [
          { "name": "section", "in": "query", "schema": { "type": "string" } },
          { "name": "noCache", "in": "query", "schema": { "type": "string", "enum": ["1"] } },
          { "$ref": "#/components/parameters/ifNoneMatch" }
        ],
        "responses": { "200": { "description": "images" }, "304": { "description": "not modified" }, "400": { "description": "invalid section" } }
      },
      "post": {
        "summary": "Upload an image",
        "requestBody": { "content": { "multipart/form-data": { "schema": { "type": "object", "required": ["file", "section"], "properties": { "file": { "type": "string", "format": "binary" }, "section": { "type": "string" }, "order": { "type": "integer" } } } } } },
        "responses": { "201": { "description": "uploaded" }, "400": { "description": "invalid upload" } }
      }
    },
    "/api/images/{id}": {
      "get": {
        "summary": "Stream an image (conditional)",
        "parameters": [ { "$ref": "#/components/parameters/imageId" }, { "$ref": "#/components/parameters/ifNoneMatch" } ],
        "responses": { "200": { "description": "image bytes" }, "304": { "description": "not modified" }, "400": { "description": "malformed id" }, "404": { "description": "not found" } }
      },
      "patch": {
        "summary": "Set display order",
        "parameters": [ { "$ref": "#/components/parameters/imageId" } ],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "required": ["order"], "properties": { "order": { "type": "integer" } } } } } },
        "responses": { "200": { "description": "updated" }, "400": { "description": "invalid order" }, "404": { "description": "not found" } }
      },
      "delete": {
        "summary": "Delete an image",
        "parameters": [ { "$ref": "#/components/parameters/imageId" } ],
        "responses": { "204": { "description": "deleted or absent" }, "400": { "description": "malformed id" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
