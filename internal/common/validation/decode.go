// internal/common/validation/decode.go
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"lead-automation/internal/common/errors"
)

// DecodeInput validates job variables against schema and decodes them into
// out using the json field tags. RFC 3339 strings decode into time.Time.
func DecodeInput(variables map[string]interface{}, schema JSONSchema, out interface{}) error {
	result := ValidateInput(variables, schema)
	if !result.Valid {
		return errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(variables); err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return nil
}
