package serverutils

import (
	"errors"
	"reflect"
	"strings"

	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// ValidationFailed carries per-field messages; rendered as 422.
type ValidationFailed struct {
	Errors []dto.ValidationError
}

func (e *ValidationFailed) Error() string {
	return "validation failed"
}

func (e *ValidationFailed) Is(target error) bool {
	return target == apperror.ErrValidation
}

type normalizer interface {
	Normalize()
}

// Validate checks s against its `validate` tags. The first failing rule of a
// field is reported, using the field's `msg` tag when present.
func Validate(s interface{}) []dto.ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []dto.ValidationError{{Msg: err.Error(), Location: "body"}}
	}

	t := reflect.Indirect(reflect.ValueOf(s)).Type()
	seen := make(map[string]bool)
	out := make([]dto.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true

		msg := fe.Error()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if custom := sf.Tag.Get("msg"); custom != "" {
				msg = custom
			}
		}
		out = append(out, dto.ValidationError{Msg: msg, Path: fe.Field(), Location: "body"})
	}
	return out
}

// BindAndValidate parses the JSON body into out, normalises it and validates
// it. An unreadable body is validated as an empty one so the caller still
// gets per-field messages.
func BindAndValidate(ctx *fiber.Ctx, out interface{}) error {
	_ = ctx.BodyParser(out)
	if n, ok := out.(normalizer); ok {
		n.Normalize()
	}
	if errs := Validate(out); len(errs) > 0 {
		return &ValidationFailed{Errors: errs}
	}
	return nil
}
