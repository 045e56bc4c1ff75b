package api

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"sui-invariant-monitor/internal/sui"
)

const invalidObjectIDMessage = "Invalid object ID format. Should be 0x followed by 64 hex characters."

// requestValidate holds the rules that need a domain-specific answer
// instead of gin's generic 400.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("sui_object_id", validateObjectID)
}

func validateObjectID(fl validator.FieldLevel) bool {
	return sui.IsObjectID(strings.TrimSpace(fl.Field().String()))
}
