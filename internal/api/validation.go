package api

import (
	"alcyxob/trainer-schedule/internal/domain"
	"reflect"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding tags on gin's validator:
//
//	weekday  an integer day of week, 0 (Sunday) to 6 (Saturday)
//	clock    a time of day, either a domain.Clock or an "HH:MM" string
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("weekday", validateWeekday); err != nil {
		return err
	}
	return v.RegisterValidation("clock", validateClock)
}

func validateWeekday(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		wd := fl.Field().Int()
		return wd >= int64(time.Sunday) && wd <= int64(time.Saturday)
	default:
		return false
	}
}

func validateClock(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		_, err := domain.ParseClock(field.String())
		return err == nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return domain.Clock(field.Int()).Valid()
	default:
		return false
	}
}
