package catalog

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps the violations found on a write.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "catalog: validation failed: " + strings.Join(parts, "; ")
}

func asError(v []Violation) error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Violations: v}
}

type checker struct{ out []Violation }

func (c *checker) add(field, msg string, args ...any) {
	c.out = append(c.out, Violation{Field: field, Message: fmt.Sprintf(msg, args...)})
}

func (c *checker) text(field, value string, minLen, maxLen int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n == 0:
		c.add(field, "is required")
	case n < minLen:
		c.add(field, "must have at least %d characters", minLen)
	case n > maxLen:
		c.add(field, "must have at most %d characters", maxLen)
	}
}

func (c *checker) capitalized(field, value string) {
	r, _ := utf8.DecodeRuneInString(value)
	if r != utf8.RuneError && unicode.ToUpper(r) != r {
		c.add(field, "the first letter must be capitalized")
	}
}

func ValidateCategory(cat Category) []Violation {
	var c checker
	c.text("name", cat.Name, 1, 80)
	c.capitalized("name", cat.Name)
	c.text("imageUrl", cat.ImageURL, 1, 300)
	return c.out
}

func ValidateProduct(p Product) []Violation {
	var c checker
	c.text("name", p.Name, 5, 80)
	c.capitalized("name", p.Name)
	c.text("description", p.Description, 1, 300)
	c.text("imageUrl", p.ImageURL, 1, 300)
	if p.Price <= 0 {
		c.add("price", "must be greater than zero")
	}
	if p.Stock < 0 || p.Stock > 9999 {
		c.add("stock", "must be between 0 and 9999")
	}
	if p.CategoryID <= 0 {
		c.add("categoryId", "is required")
	}
	return c.out
}

// ValidateProductPatch checks the product as it would look after the patch
// is applied. The registration date must fall after today.
func ValidateProductPatch(p Product, now time.Time) []Violation {
	var c checker
	if p.Stock < 1 || p.Stock > 9999 {
		c.add("stock", "must be between 1 and 9999")
	}
	if !dateOf(p.RegistrationDate).After(dateOf(now)) {
		c.add("registrationDate", "the date must be greater than the current date")
	}
	return c.out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
