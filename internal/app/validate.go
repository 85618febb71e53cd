package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"writing-game-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// NormalizeQuestion trims the question and checks the publish surface rules.
func NormalizeQuestion(q domain.Question) (domain.Question, error) {
	q.Prompt = strings.TrimSpace(q.Prompt)
	q.Rubric = strings.TrimSpace(q.Rubric)
	if err := validate.Struct(q); err != nil {
		return q, validationError(err)
	}
	return q, nil
}

// NormalizeJoin trims the join request and checks the PIN and name.
func NormalizeJoin(req domain.JoinRequest) (domain.JoinRequest, error) {
	req.PIN = strings.TrimSpace(req.PIN)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return req, validationError(err)
	}
	return req, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(parts, "; "))
}
