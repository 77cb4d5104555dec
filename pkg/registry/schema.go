// pkg/registry/schema.go
package registry

import "lead-automation/internal/models"

// Definitions is the file that seeds scoring rules, workflows, A/B tests
// and segments at startup.
type Definitions struct {
	Version      string               `json:"version"`
	LastUpdated  string               `json:"lastUpdated"`
	ScoringRules []models.ScoringRule `json:"scoringRules"`
	Workflows    []*models.Workflow   `json:"workflows"`
	ABTests      []*models.ABTest     `json:"abTests"`
	Segments     []*models.Segment    `json:"segments"`
}

// DefinitionsSchema is the draft-07 schema every definitions file must
// satisfy before it is decoded.
const DefinitionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version"],
  "definitions": {
    "condition": {
      "type": "object",
      "required": ["field", "operator"],
      "properties": {
        "field": {"type": "string", "minLength": 1},
        "operator": {
          "enum": ["equals", "not_equals", "contains", "greater_than", "less_than",
                   "in", "not_in", "exists", "starts_with", "ends_with"]
        }
      }
    },
    "action": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "active": {"type": "boolean"},
        "type": {"type": "string", "minLength": 1},
        "config": {"type": "object"}
      }
    }
  },
  "properties": {
    "version": {"type": "string"},
    "lastUpdated": {"type": "string"},
    "scoringRules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "condition", "points", "category"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "condition": {"$ref": "#/definitions/condition"},
          "points": {"type": "integer"},
          "frequency": {"enum": ["once", "multiple"]},
          "category": {"enum": ["demographic", "firmographic", "behavioral", "engagement"]},
          "active": {"type": "boolean"}
        }
      }
    },
    "workflows": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "trigger", "actions"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "active": {"type": "boolean"},
          "trigger": {
            "type": "object",
            "required": ["type"],
            "properties": {
              "type": {
                "enum": ["touchpoint_recorded", "score_threshold", "stage_changed",
                         "tag_added", "conversion", "scheduled", "manual"]
              },
              "minScore": {"type": "integer", "minimum": 0, "maximum": 100},
              "scheduledAt": {"type": "string", "format": "date-time"},
              "filters": {"type": "array", "items": {"$ref": "#/definitions/condition"}}
            }
          },
          "actions": {"type": "array", "items": {"$ref": "#/definitions/action"}},
          "conditions": {"type": "array", "items": {"$ref": "#/definitions/condition"}},
          "settings": {
            "type": "object",
            "properties": {
              "maxExecutionsPerContact": {"type": "integer", "minimum": 0},
              "cooldownMinutes": {"type": "integer", "minimum": 0}
            }
          }
        }
      }
    },
    "abTests": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "variants"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "status": {"enum": ["draft", "running", "completed"]},
          "variants": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["id"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "weight": {"type": "number", "minimum": 0},
                "visitors": {"type": "integer", "minimum": 0},
                "conversions": {"type": "integer", "minimum": 0}
              }
            }
          }
        }
      }
    },
    "segments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "conditions"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "conditions": {"type": "array", "items": {"$ref": "#/definitions/condition"}}
        }
      }
    }
  }
}`
