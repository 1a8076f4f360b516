package openapi

func envelopeSchema(dataSchema map[string]any) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "integer"},
			"err":  map[string]any{"type": "string"},
			"data": dataSchema,
		},
		"required": []string{"code"},
	}
}

func projectIDParam() map[string]any {
	return map[string]any{
		"name":     "projectId",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "integer"},
	}
}

func timeRangeParams() []any {
	return []any{
		map[string]any{"name": "from", "in": "query", "schema": map[string]any{"type": "string", "format": "date-time"}},
		map[string]any{"name": "to", "in": "query", "schema": map[string]any{"type": "string", "format": "date-time"}},
		map[string]any{"name": "limit", "in": "query", "schema": map[string]any{"type": "integer"}},
	}
}

// Spec returns a minimal OpenAPI 3 spec for the Embedd Mailer HTTP API.
// It is intentionally hand-maintained to avoid codegen tooling.
func Spec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Embedd Mailer API",
			"version": "0.1.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"tags":        []string{"system"},
					"summary":     "Health check",
					"responses":   map[string]any{"200": map[string]any{"description": "OK"}},
					"operationId": "healthz",
				},
			},
			"/api/status": map[string]any{
				"get": map[string]any{
					"tags":        []string{"system"},
					"summary":     "Get system status",
					"operationId": "getSystemStatus",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Status",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": envelopeSchema(map[string]any{"$ref": "#/components/schemas/SystemStatus"}),
								},
							},
						},
					},
				},
			},
			"/api/submit/{project}": map[string]any{
				"post": map[string]any{
					"tags":        []string{"intake"},
					"summary":     "Submit a form",
					"description": "Public endpoint embedded forms post to. The project segment is the project API key (fk_...) or a numeric project id.",
					"operationId": "submitForm",
					"parameters": []any{
						map[string]any{
							"name":     "project",
							"in":       "path",
							"required": true,
							"schema":   map[string]any{"type": "string"},
						},
					},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"type": "object", "additionalProperties": true},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Accepted",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": envelopeSchema(map[string]any{"$ref": "#/components/schemas/SubmitResult"}),
								},
							},
						},
						"400": map[string]any{"description": "Invalid body or validation failed"},
						"403": map[string]any{"description": "Origin not allowed"},
						"404": map[string]any{"description": "Unknown project"},
						"429": map[string]any{"description": "Rate limited"},
						"503": map[string]any{"description": "Storage unavailable"},
					},
				},
			},
			"/api/auth/bootstrap": map[string]any{
				"post": map[string]any{
					"tags":        []string{"auth"},
					"summary":     "Bootstrap first user and default project",
					"operationId": "bootstrap",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/BootstrapRequest"},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Bootstrapped",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": envelopeSchema(map[string]any{"$ref": "#/components/schemas/BootstrapResponse"}),
								},
							},
						},
						"409": map[string]any{"description": "Already initialized"},
						"503": map[string]any{"description": "AUTH_SECRET not configured or database unavailable"},
					},
				},
			},
			"/api/auth/login": map[string]any{
				"post": map[string]any{
					"tags":        []string{"auth"},
					"summary":     "Login",
					"operationId": "login",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/LoginRequest"},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "Token"},
						"401": map[string]any{"description": "Invalid credentials"},
					},
				},
			},
			"/api/me": map[string]any{
				"get": map[string]any{
					"tags":        []string{"auth"},
					"summary":     "Current user",
					"operationId": "me",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"responses": map[string]any{
						"200": map[string]any{"description": "User"},
						"401": map[string]any{"description": "Unauthorized"},
					},
				},
			},
			"/api/projects": map[string]any{
				"get": map[string]any{
					"tags":        []string{"projects"},
					"summary":     "List projects",
					"operationId": "listProjects",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"responses":   map[string]any{"200": map[string]any{"description": "Projects"}},
				},
				"post": map[string]any{
					"tags":        []string{"projects"},
					"summary":     "Create project",
					"operationId": "createProject",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"name":        map[string]any{"type": "string"},
										"description": map[string]any{"type": "string"},
									},
								},
							},
						},
					},
					"responses": map[string]any{"200": map[string]any{"description": "Project with API key"}},
				},
			},
			"/api/projects/{projectId}": map[string]any{
				"get": map[string]any{
					"tags":        []string{"projects"},
					"summary":     "Get project settings",
					"operationId": "getProject",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters":  []any{projectIDParam()},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Project",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": envelopeSchema(map[string]any{"$ref": "#/components/schemas/Project"}),
								},
							},
						},
						"404": map[string]any{"description": "Not found"},
					},
				},
				"patch": map[string]any{
					"tags":        []string{"projects"},
					"summary":     "Update project settings",
					"description": "Partial update. The API key is immutable and cannot be patched.",
					"operationId": "updateProject",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters":  []any{projectIDParam()},
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/ProjectUpdate"},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "Updated project"},
						"400": map[string]any{"description": "Invalid settings"},
						"404": map[string]any{"description": "Not found"},
					},
				},
				"delete": map[string]any{
					"tags":        []string{"projects"},
					"summary":     "Delete project and all of its data",
					"operationId": "deleteProject",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters":  []any{projectIDParam()},
					"responses": map[string]any{
						"200": map[string]any{"description": "Deleted"},
						"404": map[string]any{"description": "Not found"},
					},
				},
			},
			"/api/{projectId}/submissions": map[string]any{
				"get": map[string]any{
					"tags":        []string{"submissions"},
					"summary":     "List submissions",
					"operationId": "listSubmissions",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters":  append([]any{projectIDParam()}, timeRangeParams()...),
					"responses":   map[string]any{"200": map[string]any{"description": "Submissions, newest first"}},
				},
			},
			"/api/{projectId}/submissions/cleanup": map[string]any{
				"delete": map[string]any{
					"tags":        []string{"submissions"},
					"summary":     "Delete submissions older than a timestamp",
					"operationId": "cleanupSubmissions",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters": []any{
						projectIDParam(),
						map[string]any{
							"name":     "before",
							"in":       "query",
							"required": true,
							"schema":   map[string]any{"type": "string", "format": "date-time"},
						},
					},
					"responses": map[string]any{"200": map[string]any{"description": "Deleted count"}},
				},
			},
			"/api/{projectId}/logs": map[string]any{
				"get": map[string]any{
					"tags":        []string{"logs"},
					"summary":     "List mail logs",
					"operationId": "listMailLogs",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters": append([]any{
						projectIDParam(),
						map[string]any{
							"name":   "event",
							"in":     "query",
							"schema": map[string]any{"type": "string", "enum": []string{"delivered", "bounced", "blocked", "spam"}},
						},
					}, timeRangeParams()...),
					"responses": map[string]any{"200": map[string]any{"description": "Mail logs, newest first"}},
				},
			},
			"/api/{projectId}/logs/cleanup": map[string]any{
				"delete": map[string]any{
					"tags":        []string{"logs"},
					"summary":     "Delete mail logs older than a timestamp",
					"operationId": "cleanupMailLogs",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters": []any{
						projectIDParam(),
						map[string]any{
							"name":     "before",
							"in":       "query",
							"required": true,
							"schema":   map[string]any{"type": "string", "format": "date-time"},
						},
					},
					"responses": map[string]any{"200": map[string]any{"description": "Deleted count"}},
				},
			},
			"/api/{projectId}/metrics/today": map[string]any{
				"get": map[string]any{
					"tags":        []string{"metrics"},
					"summary":     "Today's intake counters",
					"operationId": "metricsToday",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters":  []any{projectIDParam()},
					"responses": map[string]any{
						"200": map[string]any{"description": "Counters"},
						"501": map[string]any{"description": "Metrics not configured"},
					},
				},
			},
			"/api/{projectId}/metrics/series": map[string]any{
				"get": map[string]any{
					"tags":        []string{"metrics"},
					"summary":     "Daily submission counts over a date range",
					"operationId": "metricsSeries",
					"security":    []any{map[string]any{"bearerAuth": []any{}}},
					"parameters":  append([]any{projectIDParam()}, timeRangeParams()...),
					"responses": map[string]any{
						"200": map[string]any{"description": "One bucket per day"},
						"501": map[string]any{"description": "Metrics not configured"},
					},
				},
			},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"SystemStatus": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"status":       map[string]any{"type": "string", "enum": []string{"uninitialized", "running", "maintenance", "exception"}},
						"initialized":  map[string]any{"type": "boolean"},
						"auth_enabled": map[string]any{"type": "boolean"},
						"message":      map[string]any{"type": "string"},
					},
				},
				"SubmitResult": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"accepted": map[string]any{"type": "boolean"},
						"id":       map[string]any{"type": "string", "format": "uuid"},
						"reason":   map[string]any{"type": "string"},
					},
				},
				"BootstrapRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"email":        map[string]any{"type": "string"},
						"password":     map[string]any{"type": "string"},
						"project_name": map[string]any{"type": "string"},
					},
					"required": []string{"email", "password"},
				},
				"BootstrapResponse": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"token":   map[string]any{"type": "string"},
						"user":    map[string]any{"type": "object"},
						"project": map[string]any{"type": "object"},
					},
				},
				"LoginRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"email":    map[string]any{"type": "string"},
						"password": map[string]any{"type": "string"},
					},
					"required": []string{"email", "password"},
				},
				"FieldDefinition": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":       map[string]any{"type": "string"},
						"label":    map[string]any{"type": "string"},
						"type":     map[string]any{"type": "string", "enum": []string{"text", "email", "number", "textarea", "checkbox", "select", "date", "time"}},
						"required": map[string]any{"type": "boolean"},
						"options":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"id", "label", "type"},
				},
				"Project": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":                map[string]any{"type": "integer"},
						"name":              map[string]any{"type": "string"},
						"description":       map[string]any{"type": "string"},
						"api_key":           map[string]any{"type": "string"},
						"allowed_origins":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"honeypot_field":    map[string]any{"type": "string"},
						"fields":            map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/FieldDefinition"}},
						"smtp_host":         map[string]any{"type": "string"},
						"smtp_port":         map[string]any{"type": "integer"},
						"smtp_secure":       map[string]any{"type": "boolean"},
						"smtp_username":     map[string]any{"type": "string"},
						"smtp_password_set": map[string]any{"type": "boolean"},
						"from_email":        map[string]any{"type": "string"},
						"to_email":          map[string]any{"type": "string"},
						"cc_email":          map[string]any{"type": "string"},
						"retention_days":    map[string]any{"type": "integer"},
					},
				},
				"ProjectUpdate": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":            map[string]any{"type": "string"},
						"description":     map[string]any{"type": "string"},
						"allowed_origins": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"honeypot_field":  map[string]any{"type": "string"},
						"fields":          map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/FieldDefinition"}},
						"smtp_host":       map[string]any{"type": "string"},
						"smtp_port":       map[string]any{"type": "integer"},
						"smtp_secure":     map[string]any{"type": "boolean"},
						"smtp_username":   map[string]any{"type": "string"},
						"smtp_password":   map[string]any{"type": "string"},
						"from_email":      map[string]any{"type": "string"},
						"to_email":        map[string]any{"type": "string"},
						"cc_email":        map[string]any{"type": "string"},
						"retention_days":  map[string]any{"type": "integer"},
					},
				},
			},
		},
	}
}
