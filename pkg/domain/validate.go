package domain

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	groupCodeRegex = regexp.MustCompile(`^[0-9A-Z]+$`)
	timeRegex      = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// custom validation tags & texts
const (
	groupCodeTag  = "groupcode"
	groupCodeText = "{0} must contain only uppercase letters or digits"
	isoDateTag    = "isodate"
	isoDateText   = "{0} must be a date formatted YYYY-MM-DD"
	timeTag       = "hhmm"
	timeText      = "{0} must be a 24-hour time formatted HH:MM"
	markRangeTag  = "markrange"
	markRangeText = "{0} must be between 0 and the mark maximum"
	afterStartTag = "afterstart"
	afterStartTxt = "{0} must be later than start"

	isoDateLayout = "2006-01-02"
)

func init() {
	validate = validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(groupCodeTag, func(fl validator.FieldLevel) bool {
		return groupCodeRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation(isoDateTag, func(fl validator.FieldLevel) bool {
		return IsISODate(fl.Field().String())
	})
	_ = validate.RegisterValidation(timeTag, func(fl validator.FieldLevel) bool {
		return IsClockTime(fl.Field().String())
	})
	validate.RegisterStructValidation(markStructLevel, Mark{})
	validate.RegisterStructValidation(lessonStructLevel, Lesson{})

	registerTranslation(groupCodeTag, groupCodeText)
	registerTranslation(isoDateTag, isoDateText)
	registerTranslation(timeTag, timeText)
	registerTranslation(markRangeTag, markRangeText)
	registerTranslation(afterStartTag, afterStartTxt)
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// IsISODate reports whether value is a real calendar date in YYYY-MM-DD form.
func IsISODate(value string) bool {
	_, err := time.Parse(isoDateLayout, value)
	return err == nil
}

// IsClockTime reports whether value is a 24-hour HH:MM time.
func IsClockTime(value string) bool {
	return timeRegex.MatchString(value)
}

// ISODate formats t as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.Format(isoDateLayout)
}

func markStructLevel(sl validator.StructLevel) {
	m := sl.Current().Interface().(Mark)
	if m.Value == nil {
		return
	}
	v := *m.Value
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || (m.Max > 0 && v > m.Max) {
		sl.ReportError(m.Value, "value", "Value", markRangeTag, "")
	}
}

func lessonStructLevel(sl validator.StructLevel) {
	l := sl.Current().Interface().(Lesson)
	if !IsClockTime(l.Start) || !IsClockTime(l.End) {
		return
	}
	// Two-digit HH:MM strings order chronologically.
	if l.End <= l.Start {
		sl.ReportError(l.End, "end", "End", afterStartTag, "")
	}
}

var kindTypes = map[Kind]reflect.Type{
	KindGroup:       reflect.TypeOf(Group{}),
	KindStudent:     reflect.TypeOf(Student{}),
	KindMark:        reflect.TypeOf(Mark{}),
	KindObservation: reflect.TypeOf(Observation{}),
	KindLesson:      reflect.TypeOf(Lesson{}),
	KindSchedule:    reflect.TypeOf(WeeklySchedule{}),
}

// Validate checks candidate against the schema of kind. It returns nil or a
// *ValidationError listing every failing field. It has no side effects.
func Validate(kind Kind, candidate any) error {
	want, ok := kindTypes[kind]
	if !ok {
		return &ValidationError{Kind: kind, Fields: []FieldError{{Tag: "kind", Message: fmt.Sprintf("unknown entity kind %q", kind)}}}
	}
	if candidate == nil || reflect.TypeOf(candidate) != want {
		return &ValidationError{Kind: kind, Fields: []FieldError{{Tag: "kind", Message: fmt.Sprintf("expected %s, got %T", want, candidate)}}}
	}
	return toValidationError(kind, "", validate.Struct(candidate))
}

// ValidateRecord validates r against the schema of its own kind.
func ValidateRecord(r Record) error {
	if r == nil {
		return &ValidationError{Fields: []FieldError{{Tag: "required", Message: "record is required"}}}
	}
	return Validate(r.RecordKind(), r)
}

// ValidateRosterRows checks import rows before a roster merge. Field paths
// are prefixed with rows[i].
func ValidateRosterRows(rows []RosterRow) error {
	out := &ValidationError{Kind: KindStudent}
	for i, row := range rows {
		err := toValidationError(KindStudent, fmt.Sprintf("rows[%d].", i), validate.Struct(row))
		var ve *ValidationError
		if errors.As(err, &ve) {
			out.Fields = append(out.Fields, ve.Fields...)
		} else if err != nil {
			return err
		}
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

func toValidationError(kind Kind, prefix string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Kind: kind, Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   prefix + fieldPath(fe.Namespace()),
			Tag:     fe.Tag(),
			Message: fe.Translate(translator),
		})
	}
	return out
}

// fieldPath strips the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
