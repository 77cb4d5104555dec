// internal/workers/tracking/record-touchpoint/validation.go
package recordtouchpoint

import (
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	types := make([]string, len(models.TouchpointTypes))
	for i, t := range models.TouchpointTypes {
		types[i] = string(t)
	}
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"type"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"leadId": {
				Type:        "string",
				Description: "Existing lead id; email is used when absent",
				MaxLength:   validation.IntPtr(64),
			},
			"email": {
				Type:        "string",
				Description: "Lead email, creates the lead on first touch",
				Format:      "email",
				MaxLength:   validation.IntPtr(255),
			},
			"type": {
				Type:        "string",
				Description: "Touchpoint type",
				Enum:        types,
			},
			"timestamp": {
				Type:        "string",
				Description: "RFC 3339 time of the interaction",
				Format:      "date-time",
			},
			"source":     {Type: "object", Description: "Channel, campaign, referrer and UTM"},
			"engagement": {Type: "object", Description: "Time on page and scroll depth"},
			"content":    {Type: "object", Description: "URL, title, asset, form or email ids"},
			"metadata":   {Type: "object"},
			"profile":    {Type: "object", Description: "Lead attributes that fill blanks on the lead"},
		},
	}
}
