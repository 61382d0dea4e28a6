// Package docs регистрирует OpenAPI-описание для /swagger.
// Пересобирается командой `swag init -g cmd/web/main.go`.
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
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Регистрация пользователя",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.RegisterRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Вход",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoginRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/auth/me": {
            "get": {"tags": ["auth"], "summary": "Текущий пользователь", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/payments": {
            "get": {"tags": ["payments"], "summary": "История платежей", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["payments"],
                "summary": "Запросить оплату через MTN MoMo",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.PaymentRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/payments/{referenceId}": {
            "get": {
                "tags": ["payments"],
                "summary": "Проверить статус платежа",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "in": "path", "name": "referenceId", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/subscription": {
            "get": {"tags": ["subscription"], "summary": "Текущая подписка", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["subscription"],
                "summary": "Оформить регулярную подписку",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.SubscribeRequest"}}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/subscription/usage": {
            "get": {"tags": ["subscription"], "summary": "Использование квоты", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/subscription/cancel": {
            "post": {"tags": ["subscription"], "summary": "Отменить подписку", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/documents": {
            "get": {"tags": ["documents"], "summary": "Документы пользователя", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["documents"],
                "summary": "Загрузить документ",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "file", "in": "formData", "name": "file", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Quota exceeded"}}
            }
        },
        "/documents/{documentId}": {
            "get": {"tags": ["documents"], "summary": "Метаданные документа", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "in": "path", "name": "documentId", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["documents"], "summary": "Удалить документ", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "in": "path", "name": "documentId", "required": true}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/documents/{documentId}/download": {
            "get": {"tags": ["documents"], "summary": "Скачать документ", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "in": "path", "name": "documentId", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/documents/{documentId}/url": {
            "get": {"tags": ["documents"], "summary": "Временная ссылка на скачивание", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "in": "path", "name": "documentId", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/webhooks/stripe": {
            "post": {
                "tags": ["webhooks"],
                "summary": "Webhook Stripe",
                "parameters": [{"type": "string", "in": "header", "name": "Stripe-Signature", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid signature"}, "413": {"description": "Payload too large"}}
            }
        }
    },
    "definitions": {
        "dto.RegisterRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string", "minLength": 8, "maxLength": 72}, "full_name": {"type": "string"}}
        },
        "dto.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "dto.PaymentRequest": {
            "type": "object",
            "required": ["amount", "phone_number"],
            "properties": {
                "amount": {"type": "string", "example": "12.50"},
                "currency": {"type": "string", "example": "XAF"},
                "phone_number": {"type": "string", "example": "237612345678"},
                "payer_message": {"type": "string", "maxLength": 160},
                "payee_note": {"type": "string", "maxLength": 160}
            }
        },
        "dto.SubscribeRequest": {
            "type": "object",
            "required": ["plan"],
            "properties": {"plan": {"type": "string", "enum": ["free", "basic", "premium", "enterprise"]}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "DocVault API",
	Description:      "Хранение документов с тарифами, оплачиваемыми через MTN MoMo и Stripe.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
