package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"guildconfig/models"

	"github.com/go-playground/validator/v10"
)

var rgbHexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// settingsValidator is shared by every caller; validator.Validate caches
// struct metadata and is safe for concurrent use.
var settingsValidator = newSettingsValidator()

func newSettingsValidator() *validator.Validate {
	v := validator.New()

	// Report violations with the stored field names, e.g. roleGrantRules[0].condition
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "snowflake", func(fl validator.FieldLevel) bool {
		return models.IsSnowflake(fl.Field().String())
	})
	mustRegister(v, "logevent", func(fl validator.FieldLevel) bool {
		return models.IsLogEvent(fl.Field().String())
	})
	mustRegister(v, "rolecondition", func(fl validator.FieldLevel) bool {
		return models.RoleGrantCondition(fl.Field().String()).IsValid()
	})
	mustRegister(v, "rgbhex", func(fl validator.FieldLevel) bool {
		return rgbHexPattern.MatchString(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %q validation: %v", tag, err))
	}
}

// Validate checks a normalized record and returns every violation found.
// An empty result means the record may be persisted.
func Validate(settings *models.GuildSettings) []string {
	if settings == nil {
		return []string{"settings: record is missing"}
	}

	err := settingsValidator.Struct(settings)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, describeFieldError(fe))
	}
	return violations
}

func describeFieldError(fe validator.FieldError) string {
	path := fe.Namespace()
	// Drop the root struct name
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("\"%v\" is not one of [%s]", fe.Value(), fe.Param())
	case "unique":
		if fe.Param() != "" {
			msg = fmt.Sprintf("entries must have unique %s values", strings.ToLower(fe.Param()))
		} else {
			msg = "entries must be unique"
		}
	case "snowflake":
		msg = fmt.Sprintf("\"%v\" is not a valid ID (17-20 digits)", fe.Value())
	case "logevent":
		msg = fmt.Sprintf("\"%v\" is not a known log event", fe.Value())
	case "rolecondition":
		msg = fmt.Sprintf("\"%v\" is not a known condition", fe.Value())
	case "rgbhex":
		msg = fmt.Sprintf("\"%v\" is not a #RRGGBB color", fe.Value())
	default:
		msg = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	return path + ": " + msg
}
