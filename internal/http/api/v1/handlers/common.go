package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the custom binding rules used by request payloads and
// reports fields by their json names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
		return store.ValidateSegment("value", fl.Field().String()) == nil
	})
}

// bindJSON decodes the body into dst and renders the first validation failure.
func bindJSON(c *gin.Context, dst any) bool {
	errBind := c.ShouldBindJSON(dst)
	if errBind == nil {
		return true
	}
	var validationErrs validator.ValidationErrors
	if errors.As(errBind, &validationErrs) && len(validationErrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + validationErrs[0].Field()})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
	return false
}

// optionalQuery returns a pointer to the query value when the key is present.
func optionalQuery(c *gin.Context, key string) *string {
	value, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	return &value
}

func fail(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}
