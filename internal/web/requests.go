package web

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/store"
)

// rowRequest is the body of row create and update calls.
type rowRequest struct {
	Values map[string]string `json:"values" validate:"required,min=1,dive,keys,required,endkeys"`
}

func (rowRequest) Bind(*http.Request) error { return nil }

// postingRequest is the body of deposit and withdraw calls.
type postingRequest struct {
	Amount float64 `json:"amount" validate:"required,gte=1,lte=5000000"`
}

func (postingRequest) Bind(*http.Request) error { return nil }

// validationError carries per-field problems back to the client.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.fields[k]
	}
	return fmt.Sprintf("%v: %s", core.ErrInvalidRequest, strings.Join(parts, "; "))
}

func (e *validationError) Unwrap() error { return core.ErrInvalidRequest }

type validate struct {
	v *validator.Validate
}

func newValidate() *validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &validate{v: v}
}

// bind decodes the request body into dst and validates it.
func (v *validate) bind(r *http.Request, dst render.Binder) error {
	if err := render.Bind(r, dst); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	err := v.v.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &validationError{fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseFilters turns query parameters other than limit into row filters,
// sorted by parameter name. A ".min" or ".max" suffix selects a bound.
func parseFilters(r *http.Request) []store.Filter {
	query := r.URL.Query()
	names := make([]string, 0, len(query))
	for name := range query {
		if name != "limit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var filters []store.Filter
	for _, name := range names {
		column, op := name, store.FilterEq
		if c, ok := strings.CutSuffix(name, ".min"); ok {
			column, op = c, store.FilterMin
		} else if c, ok := strings.CutSuffix(name, ".max"); ok {
			column, op = c, store.FilterMax
		}
		for _, v := range query[name] {
			filters = append(filters, store.Filter{Column: column, Op: op, Value: v})
		}
	}
	return filters
}
