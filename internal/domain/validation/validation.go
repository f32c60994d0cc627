// Package validation checks write shapes at the boundary where data enters
// the scoring core and turns failures into errs.ValidationError.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/user"
)

// custom validation tags & texts
const (
	requiredTag  = "required"
	requiredText = "this field is required"

	minTag     = "min"
	minNumText = "must be at least {0}"
	minStrText = "must contain at least {0} characters"

	maxTag     = "max"
	maxNumText = "must be at most {0}"
	maxStrText = "must contain at most {0} characters"

	oneOfTag  = "oneof"
	oneOfText = "must be one of: {0}"

	passwordPolicyTag = "pwdpolicy"
)

// Validator wraps a configured validator/v10 instance and its translator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a Validator with English messages keyed by JSON field names.
func New() *Validator {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerTranslation(validate, translator, requiredTag, requiredText, nil)
	registerTranslation(validate, translator, minTag, minNumText, map[reflect.Kind]string{reflect.String: minStrText})
	registerTranslation(validate, translator, maxTag, maxNumText, map[reflect.Kind]string{reflect.String: maxStrText})
	registerTranslation(validate, translator, oneOfTag, oneOfText, nil)
	registerTranslation(validate, translator, passwordPolicyTag, "{0}", nil)

	validate.RegisterStructValidation(newUserStructValidation, user.NewUserInput{})

	return &Validator{validate: validate, translator: translator}
}

// registerTranslation overrides the message for tag. byKind selects an
// alternative text for specific field kinds.
func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, byKind map[reflect.Kind]string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error {
			if err := t.Add(tag, text, true); err != nil {
				return err
			}
			for kind, alt := range byKind {
				if err := t.Add(tag+"_"+kind.String(), alt, true); err != nil {
					return err
				}
			}
			return nil
		},
		func(t ut.Translator, fe validator.FieldError) string {
			key := tag
			if _, ok := byKind[fe.Kind()]; ok {
				key = tag + "_" + fe.Kind().String()
			}
			param := fe.Param()
			if tag == oneOfTag {
				param = strings.ReplaceAll(param, " ", ", ")
			}
			s, _ := t.T(key, param)
			return s
		},
	)
}

// newUserStructValidation applies the password policy on user creation.
func newUserStructValidation(sl validator.StructLevel) {
	in, ok := sl.Current().Interface().(user.NewUserInput)
	if !ok || in.Password == "" {
		return
	}
	if msg := user.CheckPasswordPolicy(in.Password, in.Email, in.Name); msg != "" {
		sl.ReportError(in.Password, "password", "Password", passwordPolicyTag, msg)
	}
}

// Struct validates v and returns nil or an *errs.ValidationError for op.
// Non-validation failures, such as passing a non-struct, are returned wrapped.
func (v *Validator) Struct(op string, s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, op)
	}
	fields := make([]errs.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errs.FieldError{Field: fe.Field(), Message: fe.Translate(v.translator)})
	}
	return errs.Validation(op, fields...)
}

// Password checks a bare password against the policy, for flows that do not
// go through NewUserInput such as the admin CLI reset.
func (v *Validator) Password(op, pwd string, attrs ...string) error {
	if msg := user.CheckPasswordPolicy(pwd, attrs...); msg != "" {
		return errs.Validation(op, errs.FieldError{Field: "password", Message: msg})
	}
	return nil
}
