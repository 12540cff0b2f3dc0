package view

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/perse-cms/perse/internal/models"
)

const (
	maxFieldLength = 255
	fallbackRoute  = "view"
)

// CreateViewDTO is the create request accepted from JSON and form posts.
type CreateViewDTO struct {
	Title          string `json:"title"           form:"title"           validate:"required,max=255"`
	ContentBody    string `json:"content_body"    form:"content_body"    validate:"max=255"`
	ContentHead    string `json:"content_head"    form:"content_head"    validate:"max=255"`
	Description    string `json:"description"     form:"description"     validate:"max=255"`
	Route          string `json:"route"           form:"route"           validate:"required,max=255"`
	Visibility     string `json:"visibility"      form:"visibility"      validate:"required"`
	IsHomepage     Checkbox `json:"is_homepage"     form:"is_homepage"`
	AutomaticRoute Checkbox `json:"automatic_route" form:"automatic_route"`
}

// Checkbox is a bool that also binds from HTML checkbox posts, where a ticked
// box without a value attribute is sent as "on".
type Checkbox bool

// UnmarshalParam implements gin's binding.BindUnmarshaler.
func (b *Checkbox) UnmarshalParam(param string) error {
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "on", "true", "1", "yes", "checked":
		*b = true
	case "", "off", "false", "0", "no":
		*b = false
	default:
		return fmt.Errorf("invalid checkbox value %q", param)
	}
	return nil
}

// unwrapFormFields copies data[name] form keys onto name so the nested field
// names of the original create form bind like flat ones. Flat keys win.
func unwrapFormFields(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	for key, vals := range r.Form {
		if !strings.HasPrefix(key, "data[") || !strings.HasSuffix(key, "]") {
			continue
		}
		name := key[len("data[") : len(key)-1]
		if _, ok := r.Form[name]; !ok && name != "" {
			r.Form[name] = vals
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// normalize trims input and strips route slashes. Automatic routing replaces
// any suggested route with one derived from the title.
func (dto CreateViewDTO) normalize() CreateViewDTO {
	dto.Title = strings.TrimSpace(dto.Title)
	dto.ContentBody = strings.TrimSpace(dto.ContentBody)
	dto.ContentHead = strings.TrimSpace(dto.ContentHead)
	dto.Description = strings.TrimSpace(dto.Description)
	dto.Visibility = strings.TrimSpace(dto.Visibility)
	dto.Route = NormalizeRoute(dto.Route)
	if dto.AutomaticRoute && dto.Title != "" {
		dto.Route = slugify(dto.Title)
	}
	return dto
}

// toModel validates the normalized DTO and builds the row to insert.
// Every violated field is reported at once.
func (dto CreateViewDTO) toModel() (*models.ViewModel, error) {
	dto = dto.normalize()

	fields := map[string]string{}
	if err := validate.Struct(dto); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, internalError("validate view", err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	var visibility models.Visibility
	if _, failed := fields["visibility"]; !failed {
		v, err := models.ParseVisibility(dto.Visibility)
		if err != nil {
			fields["visibility"] = "must be one of Public, Unlisted, Hidden"
		}
		visibility = v
	}

	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	return &models.ViewModel{
		Visibility:  visibility,
		Title:       dto.Title,
		ContentBody: optional(dto.ContentBody),
		ContentHead: optional(dto.ContentHead),
		Description: optional(dto.Description),
		Route:       dto.Route,
		IsHomepage:  bool(dto.IsHomepage),
	}, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeRoute trims whitespace and surrounding slashes.
func NormalizeRoute(route string) string {
	return strings.Trim(strings.TrimSpace(route), "/")
}

func slugify(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, " ", "-")

	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	result := strings.Trim(sb.String(), "-")
	if result == "" {
		return fallbackRoute
	}
	if len(result) > maxFieldLength {
		result = strings.TrimRight(result[:maxFieldLength], "-")
	}
	return result
}
