package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/licensegate/internal/fields"
)

var validate = validator.New()

func init() {
	// Report fields by the names clients send.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return fields.PublicName(name)
	})
}

type offlineActivation struct {
	LicenseID        string `json:"licenseId" validate:"required"`
	OfflineRequest   string `json:"offlineRequest" validate:"required"`
	ResponseValidity int64  `json:"responseValidity" validate:"required"`
}

// decodeOfflineActivation reads the three required offline activation fields
// from a normalized request. Other fields are ignored.
func decodeOfflineActivation(req map[string]any) (*offlineActivation, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode offline activation request: %w", err)
	}

	var act offlineActivation
	if err := json.Unmarshal(raw, &act); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, invalidField(fields.PublicName(typeErr.Field), "has an invalid type")
		}
		return nil, fmt.Errorf("decode offline activation request: %w", err)
	}

	if err := validate.Struct(&act); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate offline activation request: %w", err)
		}
		names := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			names = append(names, fe.Field())
		}
		return nil, missingFields(names...)
	}
	return &act, nil
}
