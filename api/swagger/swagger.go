package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "STEM Dashboard API",
        "description": "Student records ingestion and dashboard statistics",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Uploads", "description": "Student and enrollment exports"},
        {"name": "Summary", "description": "Dashboard statistics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/api/v1/uploads": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Upload a student or enrollment export",
                "description": "Validates every row and stores the file only when it has no errors.",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "kind", "in": "formData", "type": "string", "enum": ["csv", "spreadsheet"]},
                    {"name": "report", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Stored", "schema": {"$ref": "#/definitions/UploadResponse"}},
                    "400": {"description": "Unreadable file or row errors", "schema": {"$ref": "#/definitions/UploadErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/summary": {
            "get": {
                "tags": ["Summary"],
                "summary": "Dashboard statistics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "IngestionCounts": {
            "type": "object",
            "properties": {
                "students_created": {"type": "integer"},
                "students_skipped": {"type": "integer"},
                "courses_created": {"type": "integer"},
                "enrollments_created": {"type": "integer"},
                "enrollments_skipped": {"type": "integer"}
            }
        },
        "UploadResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Success."},
                "result": {"$ref": "#/definitions/IngestionCounts"}
            }
        },
        "ReportEntry": {
            "type": "object",
            "properties": {
                "error_message": {"type": "string"},
                "line_num": {"type": "integer"},
                "col_num": {"type": "integer"},
                "sheet": {"type": "string"}
            }
        },
        "UploadErrorResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Errors while parsing data."},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/ReportEntry"}}
            }
        },
        "CategoryCount": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "DashboardSummary": {
            "type": "object",
            "properties": {
                "students": {"type": "integer"},
                "courses": {"type": "integer"},
                "enrollments": {"type": "integer"},
                "average_gpa": {"type": "number"},
                "average_hs_gpa": {"type": "number"},
                "dwf_rate": {"type": "number"},
                "by_race": {"type": "array", "items": {"$ref": "#/definitions/CategoryCount"}},
                "by_sex": {"type": "array", "items": {"$ref": "#/definitions/CategoryCount"}},
                "generated_at": {"type": "string", "format": "date-time"}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/DashboardSummary"},
                "error": {"$ref": "#/definitions/ErrorResponse"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
