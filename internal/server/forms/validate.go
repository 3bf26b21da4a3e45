package forms

import (
	"errors"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// NonFieldErrors is the Errors key for problems not tied to one input.
const NonFieldErrors = "__all__"

//nolint:golint,gochecknoglobals
var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	setupOnce       sync.Once
	translator      ut.Translator
)

// Errors maps a form field name to its message.
type Errors map[string]string

func (e Errors) Add(field, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}

// Setup registers the custom rules and English messages on gin's validator.
// It is safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		validate, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			slog.Error("Unexpected validator engine", "type", reflect.TypeOf(binding.Validator.Engine()))
			return
		}

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			if label := field.Tag.Get("label"); label != "" {
				return label
			}
			return field.Name
		})

		err := validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		if err != nil {
			slog.Error("Could not register username validation", "error", err)
		}

		english := en.New()
		uni := ut.New(english, english)
		translator, _ = uni.GetTranslator("en")
		if err := enTranslations.RegisterDefaultTranslations(validate, translator); err != nil {
			slog.Warn("Could not register translations", "locale", "en", "error", err)
		}

		err = validate.RegisterTranslation("username", translator, func(ut ut.Translator) error {
			return ut.Add("username", "{0} may contain only letters, digits, underscores and hyphens", true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("username", fe.Field())
			return t
		})
		if err != nil {
			slog.Warn("Could not register translation for username", "error", err)
		}

		err = validate.RegisterTranslation("eqfield", translator, func(ut ut.Translator) error {
			return ut.Add("eqfield", "The two {0} fields didn't match", true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("eqfield", strings.ToLower(fe.Param()))
			return t
		})
		if err != nil {
			slog.Warn("Could not register translation for eqfield", "error", err)
		}
	})
}

type normalizer interface {
	normalize()
}

// Bind maps the request's form values onto form, trims surrounding space
// from text inputs and validates it. The returned Errors is empty when the
// form is valid.
func Bind(values map[string][]string, form normalizer) Errors {
	Setup()
	errs := Errors{}
	// blank inputs are treated as missing so that optional numbers stay nil
	present := make(map[string][]string, len(values))
	for key, vs := range values {
		if len(vs) > 0 && strings.TrimSpace(vs[0]) != "" {
			present[key] = vs
		}
	}
	if err := binding.MapFormWithTag(form, present, "form"); err != nil {
		errs.Add(NonFieldErrors, "Enter whole numbers where a number is expected.")
		return errs
	}
	form.normalize()

	err := binding.Validator.ValidateStruct(form)
	if err == nil {
		return errs
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs.Add(NonFieldErrors, err.Error())
		return errs
	}
	formType := reflect.TypeOf(form).Elem()
	for _, fe := range validationErrors {
		field := fe.StructField()
		if sf, ok := formType.FieldByName(field); ok {
			if name := sf.Tag.Get("form"); name != "" {
				field = name
			}
		}
		errs.Add(field, translate(fe))
	}
	return errs
}

func translate(fe validator.FieldError) string {
	if translator == nil {
		return fe.Error()
	}
	return fe.Translate(translator)
}
