package query

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

// validateQuery checks struct tags and reports failures as shared.ErrValidation.
func validateQuery(op string, q any) error {
	err := structValidator().Struct(q)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("query", op, shared.ErrValidation, "invalid query", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return shared.NewDomainError("query", op, shared.ErrValidation, "invalid fields: "+strings.Join(fields, ", "))
}
