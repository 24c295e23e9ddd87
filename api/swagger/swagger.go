package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "iLoad API",
        "description": "Course scheduling and conflict detection service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedules", "description": "Class schedule management"},
        {"name": "Conflicts", "description": "Schedule conflict detection and resolution"},
        {"name": "Instructors", "description": "Instructor catalog"},
        {"name": "Rooms", "description": "Room catalog with program assignments"},
        {"name": "Subjects", "description": "Subject catalog"},
        {"name": "Dashboard", "description": "Aggregated counters and runtime metrics"}
    ],
    "paths": {
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "dayOfWeek", "in": "query", "type": "string"},
                    {"name": "roomId", "in": "query", "type": "string"},
                    {"name": "instructorId", "in": "query", "type": "string"},
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "approved", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedules"],
                "summary": "Update schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/schedules/{id}/approve": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Approve or unapprove schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate a conflict-free timetable proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateInput"}}
                ],
                "responses": {
                    "200": {"description": "Proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "No feasible timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/proposals/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Fetch a generated proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Discard a generated proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Discarded"}
                }
            }
        },
        "/schedules/proposals/{id}/save": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Persist a generated proposal as schedule entries",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "List conflicts",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/detect": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Run conflict detection over a term",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Detection report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/report": {
            "get": {
                "tags": ["Conflicts"],
                "summary": "Last detection report for a term",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/{id}/resolve": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Mark a conflict resolved",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructors": {
            "get": {
                "tags": ["Instructors"],
                "summary": "List instructors",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Instructors"],
                "summary": "Create instructor",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms": {
            "get": {
                "tags": ["Rooms"],
                "summary": "List rooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rooms"],
                "summary": "Create room",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create subject",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/metrics": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScheduleInput": {
            "type": "object",
            "required": ["subject_id", "instructor_id", "room_id", "day_of_week", "start_time", "end_time", "semester", "school_year"],
            "properties": {
                "subject_id": {"type": "string"},
                "instructor_id": {"type": "string"},
                "room_id": {"type": "string"},
                "day_of_week": {"type": "string", "example": "Monday"},
                "start_time": {"type": "string", "example": "07:00"},
                "end_time": {"type": "string", "example": "08:30"},
                "semester": {"type": "string", "example": "1st Semester"},
                "school_year": {"type": "string", "example": "2025-2026"}
            }
        },
        "GenerateInput": {
            "type": "object",
            "required": ["school_year", "semester", "requests"],
            "properties": {
                "school_year": {"type": "string", "example": "2025-2026"},
                "semester": {"type": "string", "example": "1st Semester"},
                "start_time": {"type": "string", "example": "07:00"},
                "end_time": {"type": "string", "example": "19:00"},
                "requests": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "required": ["subject_id", "instructor_id", "room_ids"],
                        "properties": {
                            "subject_id": {"type": "string"},
                            "instructor_id": {"type": "string"},
                            "room_ids": {"type": "array", "items": {"type": "string"}},
                            "duration_minutes": {"type": "integer", "example": 90}
                        }
                    }
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
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
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
