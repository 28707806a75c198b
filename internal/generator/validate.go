package generator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func paramsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report fields by their JSON names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// RangeError lists every parameter outside its documented range
type RangeError struct {
	Fields []string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("parameters out of range: %s", strings.Join(e.Fields, "; "))
}

// Validate reports which parameters fall outside the documented form
// ranges. Generate does not call it.
func (p Params) Validate() error {
	err := paramsValidator().Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	rangeErr := &RangeError{}
	for _, fe := range verrs {
		rangeErr.Fields = append(rangeErr.Fields, describeField(fe))
	}
	return rangeErr
}

func describeField(fe validator.FieldError) string {
	switch fe.Field() {
	case "sampleSize":
		return fmt.Sprintf("sampleSize must be between %d and %d, got %v", MinSampleSize, MaxSampleSize, fe.Value())
	case "correlation":
		return fmt.Sprintf("correlation must be between %g and %g, got %v", MinCorrelation, MaxCorrelation, fe.Value())
	case "noise":
		return fmt.Sprintf("noise must be between %g and %g, got %v", MinNoise, MaxNoise, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
