package device

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kichnu/iotdash/internal/topic"
)

// Size limits for descriptor collections.
const (
	maxValueTopics = 32
	maxOptions     = 64
	maxIndicators  = 32
	maxStateValues = 32
)

// validate is the shared validator instance. It reports JSON field names
// and knows the "segment" tag for topic-safe identifiers.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	//nolint:errcheck // tag name is static and the function is non-nil
	v.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
		return topic.ValidSegment(fl.Field().String())
	})
	return v
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every problem found in a descriptor.
// It matches ErrInvalidDevice with errors.Is.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ErrInvalidDevice.Error()
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDevice, strings.Join(messages, "; "))
}

// Unwrap lets errors.Is match ErrInvalidDevice.
func (v *ValidationErrors) Unwrap() error {
	return ErrInvalidDevice
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateDevice checks a descriptor for structural and semantic errors.
// The topic must be the device's base topic under namespace ("" means the
// default). Defaults should be applied first (see Device.ApplyDefaults).
//
// Returns:
//   - error: nil, or *ValidationErrors (matches ErrInvalidDevice) listing
//     every problem found
func ValidateDevice(d *Device, namespace string) error {
	if d == nil {
		return ErrInvalidDevice
	}

	errs := &ValidationErrors{}

	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %w", ErrInvalidDevice, err)
		}
		for _, fe := range fieldErrs {
			errs.add(fieldPath(fe), "%s", formatValidationMessage(fe))
		}
	}

	validateMode(d, errs)
	validateTopics(d, namespace, errs)
	validateRange(d, errs)
	validateOptions(d, errs)
	validateIndicators(d, errs)

	if len(d.StateValues) > maxStateValues {
		errs.add("stateValues", "at most %d entries allowed", maxStateValues)
	}

	if len(errs.Errors) > 0 {
		return errs
	}
	return nil
}

func validateMode(d *Device, errs *ValidationErrors) {
	modes, ok := modesByKind[d.Panel]
	if !ok {
		return
	}
	if mode := d.Mode(); !slices.Contains(modes, mode) {
		errs.add("panelType", "%q is not valid for %s (want one of: %s)", mode, d.Panel, strings.Join(modes, ", "))
	}
}

func validateTopics(d *Device, namespace string, errs *ValidationErrors) {
	switch {
	case d.Topic == "":
		errs.add("topic", "topic is required")
	case d.InNamespace(namespace) != nil:
		if namespace == "" {
			namespace = topic.DefaultNamespace
		}
		errs.add("topic", "%q must be %s", d.Topic, topic.Base(namespace, d.ID))
	}

	if len(d.ValueTopics) > maxValueTopics {
		errs.add("valueTopics", "at most %d entries allowed", maxValueTopics)
	}
	for _, name := range d.ValueNames() {
		if !topic.ValidSegment(name) {
			errs.add("valueTopics", "invalid value name %q", name)
			continue
		}
		if _, ok := topic.ValueKey(d.ValueTopics[name]); !ok {
			errs.add("valueTopics."+name, "suffix %q must have the form value/<key>", d.ValueTopics[name])
		}
	}
}

func validateRange(d *Device, errs *ValidationErrors) {
	if d.Panel != PanelValueControl && d.Panel != PanelValueDisplay {
		return
	}
	if d.Min >= d.Max {
		errs.add("max", "max (%g) must be greater than min (%g)", d.Max, d.Min)
		return
	}
	if d.DefaultValue < d.Min || d.DefaultValue > d.Max {
		errs.add("defaultValue", "%g is outside [%g, %g]", d.DefaultValue, d.Min, d.Max)
	}
}

func validateOptions(d *Device, errs *ValidationErrors) {
	if len(d.Options) > maxOptions {
		errs.add("options", "at most %d options allowed", maxOptions)
	}
	if d.Panel == PanelValueControl && d.Mode() == ModeSelector && len(d.Options) == 0 {
		errs.add("options", "selector requires at least one option")
	}
	seen := make(map[string]struct{}, len(d.Options))
	for _, o := range d.Options {
		if _, dup := seen[o.Value]; dup {
			errs.add("options", "duplicate option value %q", o.Value)
		}
		seen[o.Value] = struct{}{}
	}
}

func validateIndicators(d *Device, errs *ValidationErrors) {
	if len(d.Indicators) > maxIndicators {
		errs.add("indicators", "at most %d indicators allowed", maxIndicators)
	}
	seen := make(map[string]struct{}, len(d.Indicators))
	for _, ind := range d.Indicators {
		if _, dup := seen[ind.ID]; dup {
			errs.add("indicators", "duplicate indicator id %q", ind.ID)
		}
		seen[ind.ID] = struct{}{}

		if ind.Topic == "" || ind.Topic == topic.SuffixStatus {
			continue
		}
		if _, ok := topic.ValueKey(ind.Topic); !ok {
			errs.add("indicators."+ind.ID+".topic", "suffix %q must be status or value/<key>", ind.Topic)
		}
	}
}

// fieldPath strips the root struct name from a validator namespace
// ("Device.options[0].value" becomes "options[0].value").
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

// formatValidationMessage creates human-readable error messages.
func formatValidationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "segment":
		return fmt.Sprintf("%s must be a single topic segment without '/', '+' or '#'", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
