package commands

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/invisible-tech/xdr-responder/internal/timeutil"
)

// Args are the raw string arguments of a command invocation.
type Args map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("arg"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode fills out from args and validates it. Blank arguments are treated
// as absent. List fields are split on commas, numeric and boolean fields are
// parsed from their string form.
func decode(args Args, out interface{}) error {
	in := make(map[string]interface{}, len(args))
	for k, v := range args {
		if v = strings.TrimSpace(v); v != "" {
			in[k] = v
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "arg",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(splitListHook),
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	return nil
}

func splitListHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return SplitList(reflect.ValueOf(data).String()), nil
}

// SplitList splits a comma-separated argument, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return missing(fe.Field())
	case "oneof":
		return invalid(fe.Field(), "%v is not one of %s", fe.Value(), strings.Join(strings.Fields(fe.Param()), ", "))
	case "min", "max":
		return invalid(fe.Field(), "must be %s %s", map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	default:
		return invalid(fe.Field(), "failed %s check", fe.Tag())
	}
}

// millis parses a time argument into epoch milliseconds.
func millis(field, value string) (int64, error) {
	ms, err := timeutil.ParseMillis(value, now())
	if err != nil {
		return 0, invalid(field, "%v", err)
	}
	return ms, nil
}
