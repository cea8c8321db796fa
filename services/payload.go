package services

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CoursePayload is the structured output expected from the generator.
type CoursePayload struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Questions   []QuestionInput `json:"questions" validate:"min=3,max=5,dive"`
}

type QuestionInput struct {
	Question    string   `json:"question" validate:"required"`
	Answer      string   `json:"answer" validate:"required"`
	Choices     []string `json:"choices" validate:"min=2,max=4,unique,dive,required"`
	Explanation string   `json:"explanation"`
	Difficulty  int      `json:"difficulty" validate:"min=1,max=5"`
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(QuestionInput)
		if q.Answer != "" && !slices.Contains(q.Choices, q.Answer) {
			sl.ReportError(q.Answer, "answer", "Answer", "answer_in_choices", "")
		}
	}, QuestionInput{})

	return v
}

// ValidatePayload checks the shape bounds of a generated course: a non-blank
// name, 3-5 questions, 2-4 distinct choices, answer among the choices and
// difficulty 1-5.
func ValidatePayload(p *CoursePayload) error {
	if p == nil {
		return &ValidationError{Fields: map[string]string{"payload": "is empty"}}
	}

	p.Name = strings.TrimSpace(p.Name)

	return toValidationError(payloadValidator.Struct(p), "")
}

// ValidateQuestions checks a standalone batch of questions item by item.
func ValidateQuestions(items []QuestionInput) error {
	if len(items) == 0 {
		return &ValidationError{Fields: map[string]string{"questions": "is required"}}
	}

	fields := map[string]string{}
	for i := range items {
		err := toValidationError(payloadValidator.Struct(&items[i]), fmt.Sprintf("questions[%d].", i))
		var verr *ValidationError
		if errors.As(err, &verr) {
			for k, v := range verr.Fields {
				fields[k] = v
			}
		} else if err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func toValidationError(err error, prefix string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[prefix+fieldPath(fe.Namespace())] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name: "CoursePayload.questions[0].choices" -> "questions[0].choices".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param()
	case "unique":
		return "must not contain duplicates"
	case "answer_in_choices":
		return "must be one of the choices"
	default:
		return "failed " + fe.Tag()
	}
}
