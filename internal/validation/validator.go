package validation

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Validator validates structs using `validate` struct tags.
//
// Supported rules: required, min=N, max=N, len=N, oneof=a b c, hex.
// min/max compare the value of numbers and the length of strings and
// slices. Durations accept a duration literal ("10ms"). Nested structs and
// slices of structs are validated recursively.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	return v.validateStruct(val, "")
}

func (v *Validator) validateStruct(val reflect.Value, prefix string) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}
		name := prefix + fieldType.Name

		if tag := fieldType.Tag.Get("validate"); tag != "" {
			if err := v.validateField(field, tag); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}

		switch field.Kind() {
		case reflect.Struct:
			if _, ok := field.Interface().(time.Time); ok {
				continue
			}
			if err := v.validateStruct(field, name+"."); err != nil {
				return err
			}
		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.Struct {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				if err := v.validateStruct(field.Index(j), fmt.Sprintf("%s[%d].", name, j)); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// validateField validates a single field
func (v *Validator) validateField(field reflect.Value, tag string) error {
	rules := strings.Split(tag, ",")

	for _, rule := range rules {
		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]
		arg := ""
		if len(parts) == 2 {
			arg = parts[1]
		}

		switch ruleName {
		case "required":
			if field.IsZero() {
				return fmt.Errorf("field is required")
			}

		case "min", "max", "len":
			if err := checkBound(field, ruleName, arg); err != nil {
				return err
			}

		case "oneof":
			if field.Kind() != reflect.String {
				return fmt.Errorf("oneof on %s", field.Kind())
			}
			if field.String() == "" {
				continue
			}
			found := false
			for _, opt := range strings.Fields(arg) {
				if field.String() == opt {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("must be one of [%s]", arg)
			}

		case "hex":
			if field.Kind() != reflect.String {
				return fmt.Errorf("hex on %s", field.Kind())
			}
			if _, err := hex.DecodeString(field.String()); err != nil {
				return fmt.Errorf("invalid hex string")
			}

		default:
			return fmt.Errorf("unknown rule %q", ruleName)
		}
	}

	return nil
}

func checkBound(field reflect.Value, rule, arg string) error {
	switch field.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid %s argument %q", rule, arg)
		}
		return compare(rule, float64(field.Len()), float64(n), "length ")

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(arg)
			if err != nil {
				return fmt.Errorf("invalid %s argument %q", rule, arg)
			}
			return compare(rule, float64(field.Int()), float64(d), "")
		}
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid %s argument %q", rule, arg)
		}
		return compare(rule, float64(field.Int()), n, "")

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid %s argument %q", rule, arg)
		}
		return compare(rule, float64(field.Uint()), n, "")

	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid %s argument %q", rule, arg)
		}
		return compare(rule, field.Float(), n, "")

	default:
		return fmt.Errorf("%s on %s", rule, field.Kind())
	}
}

func compare(rule string, got, want float64, what string) error {
	switch rule {
	case "min":
		if got < want {
			return fmt.Errorf("minimum %sis %v", what, want)
		}
	case "max":
		if got > want {
			return fmt.Errorf("maximum %sis %v", what, want)
		}
	case "len":
		if got != want {
			return fmt.Errorf("%smust be %v", what, want)
		}
	}
	return nil
}
