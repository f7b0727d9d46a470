package middlewares

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"civicsync-be/models"
	"civicsync-be/services"
)

// RegisterValidators adds the domain tags used in request bodies:
// `department` accepts a known department and `pincode` six digits.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseDepartment(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return services.ValidPincode(fl.Field().String())
	})
}
