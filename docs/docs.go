// Package docs holds the OpenAPI description served at /swagger. Regenerate
// with `swag init -g cmd/authd/main.go` after changing handler annotations.
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
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.loginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "401": {"description": "unknown identity or bad credential", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "not verified, suspended or locked", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/verify": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify email",
                "parameters": [
                    {"type": "string", "description": "Verification token", "name": "token", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "invalid, expired or already verified", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify email",
                "parameters": [
                    {"description": "Verification token", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handler.tokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "invalid, expired or already verified", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/verify/resend": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Resend verification mail",
                "parameters": [
                    {"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.emailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/check-email": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Check email availability",
                "parameters": [
                    {"type": "string", "description": "Email to check", "name": "email", "in": "query"},
                    {"description": "Email to check", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handler.emailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.availabilityResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/reset/request": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Request a password reset",
                "parameters": [
                    {"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.emailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/reset/verify": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Check a password reset token",
                "parameters": [
                    {"type": "string", "description": "Reset token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "invalid or expired", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/reset/confirm": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Reset password",
                "parameters": [
                    {"description": "Reset token and new password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.resetConfirmRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "400": {"description": "invalid payload, invalid or expired token", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.userInfo"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List accounts",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.adminAccount"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/admin/users/suspend": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Suspend account",
                "parameters": [
                    {"description": "Suspension details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.suspendRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.suspendResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/admin/users/unsuspend": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Unsuspend account",
                "parameters": [
                    {"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.emailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/admin/users/reset-failures": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Reset login failures",
                "parameters": [
                    {"description": "Account email", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.emailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/admin/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Admin audit log",
                "parameters": [
                    {"type": "integer", "description": "Max entries (default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.AdminLogEntry"}}}
                }
            }
        }
    },
    "definitions": {
        "domain.AdminLogEntry": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "actor": {"type": "string"},
                "created_at": {"type": "string"},
                "detail": {"type": "string"},
                "id": {"type": "string"},
                "target": {"type": "string"}
            }
        },
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "string"},
                "remaining_attempts": {"type": "integer"},
                "remaining_seconds": {"type": "integer"},
                "suspended_until": {"type": "string"}
            }
        },
        "handler.adminAccount": {
            "type": "object",
            "properties": {
                "account_status": {"type": "string"},
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "fail_count": {"type": "integer"},
                "full_name": {"type": "string"},
                "lock_until": {"type": "string"},
                "provider": {"type": "string"},
                "role": {"type": "string"},
                "suspend_reason": {"type": "string"},
                "suspended_until": {"type": "string"}
            }
        },
        "handler.availabilityResponse": {
            "type": "object",
            "properties": {"available": {"type": "boolean"}}
        },
        "handler.emailRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}}
        },
        "handler.resetConfirmRequest": {
            "type": "object",
            "required": ["token", "new_password"],
            "properties": {
                "token": {"type": "string"},
                "new_password": {"type": "string", "minLength": 8, "maxLength": 72}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.loginResponse": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/handler.userInfo"}
            }
        },
        "handler.messageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "handler.registerRequest": {
            "type": "object",
            "required": ["email", "first_name", "last_name", "password"],
            "properties": {
                "email": {"type": "string", "maxLength": 254},
                "first_name": {"type": "string", "maxLength": 50},
                "last_name": {"type": "string", "maxLength": 50},
                "password": {"type": "string", "maxLength": 72, "minLength": 8}
            }
        },
        "handler.suspendRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "days": {"type": "integer", "maximum": 3650, "minimum": 0},
                "email": {"type": "string"},
                "reason": {"type": "string", "maxLength": 500}
            }
        },
        "handler.suspendResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "suspended_until": {"type": "string"}
            }
        },
        "handler.tokenRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {"token": {"type": "string"}}
        },
        "handler.userInfo": {
            "type": "object",
            "properties": {
                "account_status": {"type": "string"},
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "provider": {"type": "string"},
                "role": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "authcore API",
	Description:      "Account authentication: login with lockout, bearer tokens and email verification.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
