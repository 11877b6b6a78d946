package validation

import (
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validator  *validator.Validate
	Translator ut.Translator
)

func init() {
	Validator = validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)

	var found bool
	Translator, found = uni.GetTranslator("en")

	if !found {
		panic("translator en not found")
	}

	if err := en_translations.RegisterDefaultTranslations(Validator, Translator); err != nil {
		panic(err)
	}

	addCustomTranslations()
}

func addCustomTranslations() {
	Validator.RegisterTranslation("required", Translator, func(ut ut.Translator) error {
		return ut.Add("required", "{0} is required", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("required", fieldName(fe.Field()))
		return t
	})

	Validator.RegisterTranslation("max", Translator, func(ut ut.Translator) error {
		return ut.Add("max", "{0} must be at most {1} characters", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("max", fieldName(fe.Field()), fe.Param())
		return t
	})

	Validator.RegisterTranslation("min", Translator, func(ut ut.Translator) error {
		return ut.Add("min", "{0} must be at least {1} characters", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("min", fieldName(fe.Field()), fe.Param())
		return t
	})

	Validator.RegisterTranslation("oneof", Translator, func(ut ut.Translator) error {
		return ut.Add("oneof", "{0} must be one of: {1}", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("oneof", fieldName(fe.Field()), fe.Param())
		return t
	})

	Validator.RegisterTranslation("gte", Translator, func(ut ut.Translator) error {
		return ut.Add("gte", "{0} must not be negative", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("gte", fieldName(fe.Field()))
		return t
	})
}

func fieldName(field string) string {
	fieldNames := map[string]string{
		"Title":       "title",
		"Description": "description",
		"Notes":       "notes",
		"Priority":    "priority",
		"Name":        "name",
		"TaskCount":   "task count",
		"Text":        "text",
		"ProjectID":   "project id",
	}

	if name, exists := fieldNames[field]; exists {
		return name
	}

	return strings.ToLower(field)
}

// FieldError is a single violated rule on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result is the tagged outcome of validating a loosely-typed record:
// either Valid with Data populated, or a list of structured errors.
type Result[T any] struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
	Data   T            `json:"data,omitempty"`
}

func Failure[T any](errs []FieldError) Result[T] {
	return Result[T]{Valid: false, Errors: errs}
}

func Success[T any](data T) Result[T] {
	return Result[T]{Valid: true, Data: data}
}

// Check runs struct validation and returns every violated rule.
func Check(v any) []FieldError {
	err := Validator.Struct(v)

	if err == nil {
		return nil
	}

	return Format(err)
}

// Format converts validator errors into structured field errors.
func Format(err error) []FieldError {
	var errs []FieldError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			errs = append(errs, FieldError{
				Field:   strings.ToLower(fieldError.Field()),
				Rule:    fieldError.Tag(),
				Message: fieldError.Translate(Translator),
			})
		}
	}

	return errs
}

// Messages flattens field errors into display-ready strings.
func Messages(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}
