// internal/workers/tracking/record-conversion/validation.go
package recordconversion

import (
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	eventTypes := make([]string, len(models.ConversionEventTypes))
	for i, t := range models.ConversionEventTypes {
		eventTypes[i] = string(t)
	}
	attributionModels := make([]string, len(models.AttributionModelTypes))
	for i, m := range models.AttributionModelTypes {
		attributionModels[i] = string(m)
	}

	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"leadId", "eventType"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"conversionId": {Type: "string", MinLength: validation.IntPtr(1), MaxLength: validation.IntPtr(128)},
			"leadId":       {Type: "string", MinLength: validation.IntPtr(1)},
			"eventType":    {Type: "string", Enum: eventTypes},
			"value": {
				Type:        "number",
				Description: "Monetary value of the conversion",
				Minimum:     validation.FloatPtr(0),
			},
			"currency": {
				Type:    "string",
				Pattern: "^[A-Za-z]{3}$",
			},
			"occurredAt":       {Type: "string", Format: "date-time"},
			"attributionModel": {Type: "string", Enum: attributionModels},
		},
	}
}
