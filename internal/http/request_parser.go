// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of request data: the month
// selector and the new-entry form.

package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"orcamento/internal/core"
	"orcamento/internal/entries"
)

// EntryForm is the new-entry form as posted by the browser.
type EntryForm struct {
	Description string `form:"description" validate:"required,max=200"`
	Amount      string `form:"amount" validate:"required,max=32"`
	Type        string `form:"type" validate:"required,oneof=INCOME EXPENSE"`
	Category    string `form:"category" validate:"required,category"`
	Month       string `form:"month" validate:"omitempty,monthkey"`
}

// FormError is a validation failure with a message fit for the user.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string {
	return e.Field + ": " + e.Message
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return core.Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("monthkey", func(fl validator.FieldLevel) bool {
		_, err := core.ParseMonthKey(fl.Field().String())
		return err == nil
	})
	return v
}

// fieldMessages maps form fields to the message shown when they fail.
var fieldMessages = map[string]string{
	"Description": "Informe uma descrição de até 200 caracteres.",
	"Amount":      "Informe um valor.",
	"Type":        "Tipo inválido.",
	"Category":    "Categoria inválida.",
	"Month":       "Mês inválido.",
}

// EntryFormFromValues reads and sanitizes the form fields.
func EntryFormFromValues(form url.Values) EntryForm {
	return EntryForm{
		Description: sanitizeInput(form.Get("description")),
		Amount:      sanitizeInput(form.Get("amount")),
		Type:        sanitizeInput(form.Get("type")),
		Category:    sanitizeInput(form.Get("category")),
		Month:       sanitizeInput(form.Get("month")),
	}
}

// Draft validates the form and converts it to an entries.Draft. The returned
// error is a *FormError.
func (f EntryForm) Draft() (entries.Draft, error) {
	if err := formValidator.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0].StructField()
			return entries.Draft{}, &FormError{Field: field, Message: fieldMessages[field]}
		}
		return entries.Draft{}, &FormError{Field: "form", Message: "Formulário inválido."}
	}

	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return entries.Draft{}, &FormError{Field: "Amount", Message: "Valor inválido."}
	}

	return entries.Draft{
		Description: f.Description,
		Amount:      amount,
		Type:        core.EntryType(f.Type),
		Category:    core.Category(f.Category),
		MonthKey:    core.MonthKey(f.Month),
	}, nil
}

// ParseMonth returns the month named by the "month" value, or the month
// containing now when it is missing or malformed.
func ParseMonth(values url.Values, now time.Time) core.MonthKey {
	if v := strings.TrimSpace(values.Get("month")); v != "" {
		if k, err := core.ParseMonthKey(v); err == nil {
			return k
		}
	}
	return core.MonthKeyOf(now)
}

// isHTMX reports whether the request was issued by htmx and expects a
// fragment rather than a full page.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Formato de requisição inválido.")
	}
	return nil
}
