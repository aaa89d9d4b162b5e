package errutil

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// BindError turns a gin binding failure into a BadRequest that lists the
// fields that failed validation.
func BindError(msg string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadRequest(msg, err)
	}

	details := make([]Detail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, Detail{Field: fe.Field(), Message: "failed on " + fe.Tag()})
	}
	return BadRequest(msg, err, WithDetails(details...))
}
