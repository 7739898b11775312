// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateCommand checks struct tags and reports failures as shared.ErrValidation.
func validateCommand(op string, cmd any) error {
	err := structValidator().Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrValidation, "invalid command", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return shared.NewDomainError("command", op, shared.ErrValidation, "invalid fields: "+strings.Join(fields, ", "))
}
