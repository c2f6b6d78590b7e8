package location

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	maxNameLength = 100
	maxIDLength   = 64
)

// Room IDs appear in device descriptors and URLs.
var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	//nolint:errcheck // static tag and non-nil function
	v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return roomIDPattern.MatchString(fl.Field().String())
	})
	return v
}()

// roomRules carries the validation tags; ID is checked before Name.
type roomRules struct {
	ID   string `validate:"required,max=64,roomid"`
	Name string `validate:"required,max=100"`
}

// ValidateRoom checks a room before it is stored. The error matches
// ErrInvalidID or ErrInvalidName. Surrounding whitespace in the name is
// ignored.
func ValidateRoom(r *Room) error {
	err := validate.Struct(roomRules{ID: r.ID, Name: strings.TrimSpace(r.Name)})
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fe := fieldErrs[0]
	sentinel, subject := ErrInvalidName, "name"
	if fe.Field() == "ID" {
		sentinel, subject = ErrInvalidID, "id"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s cannot be empty", sentinel, subject)
	case "max":
		return fmt.Errorf("%w: %s exceeds %s characters", sentinel, subject, fe.Param())
	default:
		return fmt.Errorf("%w: id must be alphanumeric with '_' or '-'", sentinel)
	}
}
