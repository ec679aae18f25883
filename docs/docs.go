// Package docs registers the OpenAPI description served at /docs.
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
                "description": "Register a new user and return an access token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "Register input", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/httpserver.tokenResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpserver.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "description": "Login with username and password",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login input", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpserver.tokenResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Get Current User",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/users/exists": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Username availability",
                "parameters": [
                    {"type": "string", "description": "Username", "name": "username", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}}
                }
            }
        },
        "/users/{userID}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get user",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpserver.publicUserResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/contacts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "List contacts",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/service.ContactRecord"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["contacts"],
                "summary": "Add contact",
                "parameters": [
                    {"description": "Contact", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.addContactRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.ContactRecord"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/contacts/{userID}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["contacts"],
                "summary": "Remove contact",
                "parameters": [
                    {"type": "string", "description": "Contact user ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/messages/{userID}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Messages between the caller and userID, oldest first",
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Direct message history",
                "parameters": [
                    {"type": "string", "description": "Peer ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/service.MessageRecord"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Send direct message",
                "parameters": [
                    {"type": "string", "description": "Receiver ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Message", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.messageCreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.MessageRecord"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/groups": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["groups"],
                "summary": "List my groups",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/service.GroupRecord"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Creates a group with the caller as its first member",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["groups"],
                "summary": "Create group",
                "parameters": [
                    {"description": "Group", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.groupCreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Group"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/groups/{groupID}/members": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["groups"],
                "summary": "List group members",
                "parameters": [
                    {"type": "integer", "description": "Group ID", "name": "groupID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/httpserver.memberResponse"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httpserver.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds users to a group; the caller must already be a member",
                "consumes": ["application/json"],
                "tags": ["groups"],
                "summary": "Add group members",
                "parameters": [
                    {"type": "integer", "description": "Group ID", "name": "groupID", "in": "path", "required": true},
                    {"description": "Members", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.addMembersRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httpserver.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        },
        "/groups/{groupID}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["groups"],
                "summary": "Group message history",
                "parameters": [
                    {"type": "integer", "description": "Group ID", "name": "groupID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/service.GroupMessageRecord"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httpserver.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["groups"],
                "summary": "Send group message",
                "parameters": [
                    {"type": "integer", "description": "Group ID", "name": "groupID", "in": "path", "required": true},
                    {"description": "Message", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpserver.messageCreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.GroupMessageRecord"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httpserver.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httpserver.errorBody"}}
                }
            }
        }
    },
    "definitions": {
        "domain.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "registration_date": {"type": "string"},
                "last_login": {"type": "string"},
                "user_agent": {"type": "string"},
                "os": {"type": "string"}
            }
        },
        "domain.Group": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "httpserver.errorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "httpserver.registerRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "httpserver.loginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "httpserver.tokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "user": {"$ref": "#/definitions/domain.User"}
            }
        },
        "httpserver.addContactRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"}
            }
        },
        "httpserver.messageCreateRequest": {
            "type": "object",
            "properties": {
                "content": {"type": "string"}
            }
        },
        "httpserver.groupCreateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "httpserver.addMembersRequest": {
            "type": "object",
            "properties": {
                "user_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "httpserver.memberResponse": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "username": {"type": "string"},
                "joined_at": {"type": "string"}
            }
        },
        "httpserver.publicUserResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "online": {"type": "boolean"}
            }
        },
        "service.ContactRecord": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "service.MessageRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "sender_id": {"type": "string"},
                "sender": {"type": "string"},
                "receiver_id": {"type": "string"},
                "receiver": {"type": "string"},
                "content": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "service.GroupRecord": {
            "type": "object",
            "properties": {
                "group_id": {"type": "integer"},
                "name": {"type": "string"}
            }
        },
        "service.GroupMessageRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "group_id": {"type": "integer"},
                "sender_id": {"type": "string"},
                "sender": {"type": "string"},
                "content": {"type": "string"},
                "timestamp": {"type": "string"}
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
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "SecureChat API",
	Description:      "Accounts, contacts, direct and group messaging.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
