package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/response"
	appValidator "github.com/charlesng35/rsvp/pkg/validator"
)

// fieldLabels name request fields the way members see them in the UI.
var fieldLabels = map[string]string{
	"starts_at":     "start time",
	"ends_at":       "end time",
	"rsvp_limit":    "RSVP limit",
	"user_email":    "guest email",
	"use_anonymous": "anonymous RSVP",
}

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. On failure it writes a 400 and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(describeValidation(err)))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}
	messages := make([]string, 0, len(failures))
	for _, f := range failures {
		messages = append(messages, describeFailure(f))
	}
	return strings.Join(messages, "; ")
}

func describeFailure(f appValidator.ValidationError) string {
	field := fieldLabel(f.Field)
	unit := " characters"
	if f.Numeric() {
		unit = ""
	}

	switch f.Tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if f.Numeric() && f.Param == "0" {
			return field + " cannot be negative"
		}
		return fmt.Sprintf("%s must be at least %s%s", field, f.Param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, f.Param, unit)
	case "uuid4":
		return field + " must be a valid UUID"
	}
	if f.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s failed %s", field, f.Tag)
}

func fieldLabel(name string) string {
	if name == "" {
		return "field"
	}
	if label, ok := fieldLabels[name]; ok {
		return label
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// parseIntQuery returns fallback for a missing or malformed parameter.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return fallback
	}
	return parsed
}
