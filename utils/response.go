package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ErrorBody is the error payload of every failed request.
type ErrorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorBody{Error: message})
}

func RespondWithFieldError(c *gin.Context, code int, field, message string) {
	body := ErrorBody{Error: message}
	if field != "" {
		body.Fields = map[string][]string{field: {message}}
	}
	c.AbortWithStatusJSON(code, body)
}

// BindingErrorBody turns a ShouldBindJSON error into a field map keyed by
// json names. Malformed JSON yields a body with no fields.
func BindingErrorBody(err error) ErrorBody {
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := fe.Field()
			fields[field] = append(fields[field], fe.Tag())
		}
	}
	if len(fields) == 0 {
		return ErrorBody{Error: "invalid request body: " + err.Error()}
	}
	return ErrorBody{Error: "validation_failed", Fields: fields}
}

// UseJSONFieldNames makes gin's validator report json tag names.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}
