// internal/workflow/fields.go
package workflow

import (
	"fmt"
	"strings"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/condition"
	"lead-automation/internal/models"
	"lead-automation/internal/scoring"
)

// applyField sets a lead attribute by its record path. Paths that are not
// lead attributes are stored as custom fields.
func applyField(lead *models.Lead, field string, value interface{}) error {
	str := func() string {
		if value == nil {
			return ""
		}
		return fmt.Sprint(value)
	}

	switch field {
	case "":
		return errors.NewInvalidDefinitionError("update_field needs a field")
	case "score":
		n, ok := condition.ToFloat(value)
		if !ok {
			return errors.NewInvalidDefinitionError(fmt.Sprintf("score must be numeric, got %v", value))
		}
		lead.Score = scoring.Clamp(n)
	case "status":
		status := models.LeadStatus(str())
		if !status.Valid() {
			return errors.NewInvalidDefinitionError(fmt.Sprintf("unknown lead status %q", status))
		}
		lead.Status = status
	case "firstName":
		lead.FirstName = str()
	case "lastName":
		lead.LastName = str()
	case "jobTitle":
		lead.JobTitle = str()
	case "phone":
		lead.Phone = str()
	case "source":
		lead.Source = str()
	case "assignedTo":
		lead.AssignedTo = str()
	case "company.name":
		lead.Company.Name = str()
	case "company.industry":
		lead.Company.Industry = str()
	case "company.country":
		lead.Company.Country = str()
	case "company.website":
		lead.Company.Website = str()
	case "company.size":
		n, ok := condition.ToFloat(value)
		if !ok {
			return errors.NewInvalidDefinitionError(fmt.Sprintf("company.size must be numeric, got %v", value))
		}
		lead.Company.Size = int(n)
	case "company.revenue":
		n, ok := condition.ToFloat(value)
		if !ok {
			return errors.NewInvalidDefinitionError(fmt.Sprintf("company.revenue must be numeric, got %v", value))
		}
		lead.Company.Revenue = n
	case "id", "email", "stage", "tags", "touchpointCount", "converted":
		return errors.NewInvalidDefinitionError(fmt.Sprintf("field %q is not writable", field))
	default:
		key := strings.TrimPrefix(field, "customFields.")
		if lead.CustomFields == nil {
			lead.CustomFields = map[string]interface{}{}
		}
		lead.CustomFields[key] = value
	}
	return nil
}
