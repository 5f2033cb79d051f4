// Package docs is the OpenAPI document served under /swagger.
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
		"/tournaments": {
			"get": {
				"tags": [
					"tournaments"
				],
				"summary": "List tournaments",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "status",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "offset",
						"in": "query"
					}
				]
			},
			"post": {
				"tags": [
					"tournaments"
				],
				"summary": "Create tournament",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Validation failed"
					}
				},
				"parameters": [
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tournaments/{tournamentID}": {
			"get": {
				"tags": [
					"tournaments"
				],
				"summary": "Get tournament",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"tournaments"
				],
				"summary": "Delete tournament without paid participants",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"409": {
						"description": "Has paid participants"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tournaments/{tournamentID}/status": {
			"patch": {
				"tags": [
					"tournaments"
				],
				"summary": "Change tournament status",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tournaments/{tournamentID}/bracket": {
			"get": {
				"tags": [
					"brackets"
				],
				"summary": "Get bracket with matches grouped by round",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				]
			},
			"post": {
				"tags": [
					"brackets"
				],
				"summary": "Generate bracket",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"409": {
						"description": "Already generated"
					},
					"422": {
						"description": "Insufficient participants"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tournaments/{tournamentID}/matches": {
			"get": {
				"tags": [
					"matches"
				],
				"summary": "List matches",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					},
					{
						"type": "integer",
						"name": "round",
						"in": "query"
					},
					{
						"type": "string",
						"name": "status",
						"in": "query"
					}
				]
			}
		},
		"/tournaments/{tournamentID}/participants": {
			"get": {
				"tags": [
					"participants"
				],
				"summary": "List participants",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				]
			},
			"post": {
				"tags": [
					"participants"
				],
				"summary": "Register for tournament",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"409": {
						"description": "Registration closed, full or duplicate"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/tournaments/{tournamentID}/participants/me": {
			"delete": {
				"tags": [
					"participants"
				],
				"summary": "Withdraw registration",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Tournament ID",
						"name": "tournamentID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/participants/{participantID}/paid": {
			"post": {
				"tags": [
					"participants"
				],
				"summary": "Mark entry fee paid",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Participant ID",
						"name": "participantID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/participants/{participantID}/refund": {
			"post": {
				"tags": [
					"participants"
				],
				"summary": "Mark entry fee refunded",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Participant ID",
						"name": "participantID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}": {
			"get": {
				"tags": [
					"matches"
				],
				"summary": "Get match",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					},
					"403": {
						"description": "Not a player of this match"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}/result": {
			"post": {
				"tags": [
					"matches"
				],
				"summary": "Submit own result",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Not a player of this match"
					},
					"409": {
						"description": "Match not accepting results"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}/start": {
			"post": {
				"tags": [
					"matches"
				],
				"summary": "Start match",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}/verify": {
			"post": {
				"tags": [
					"matches"
				],
				"summary": "Verify submitted results",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}/files": {
			"post": {
				"tags": [
					"matches"
				],
				"summary": "Upload screenshot or evidence",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"503": {
						"description": "Uploads not configured"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					},
					{
						"type": "file",
						"name": "file",
						"in": "formData",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}/dispute": {
			"post": {
				"tags": [
					"disputes"
				],
				"summary": "Report dispute",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/matches/{matchID}/dispute/resolve": {
			"post": {
				"tags": [
					"disputes"
				],
				"summary": "Resolve dispute; without winner_id the match is cancelled",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "Match ID",
						"name": "matchID",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "input",
						"in": "body",
						"required": true,
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
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
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Bracket Engine API",
	Description:      "Single-elimination brackets, match results, disputes and progression.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
