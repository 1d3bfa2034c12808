package handler

import (
	"fmt"

	"dwelligence/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain tags used in request bindings:
// travelmode and amenitycategory.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("travelmode", func(fl validator.FieldLevel) bool {
		return model.TravelMode(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register travelmode: %w", err)
	}
	if err := v.RegisterValidation("amenitycategory", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register amenitycategory: %w", err)
	}
	return nil
}
