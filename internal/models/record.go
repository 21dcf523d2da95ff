package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/desertthunder/userimport/internal/shared"
	"github.com/go-playground/validator/v10"
)

// RequiredColumns lists the header columns every input file must provide, in report order.
var RequiredColumns = []string{"name", "email", "role"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("csv"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RawRow is one data row of the input file.
type RawRow struct {
	Index  int               // 1-based data row number (the header is row 0)
	Fields map[string]string // Lower-cased header name to cell value
}

// Get returns the value for column and whether the column exists in this row.
func (r RawRow) Get(column string) (string, bool) {
	v, ok := r.Fields[strings.ToLower(column)]
	return v, ok
}

// UserRecord is a validated candidate account.
type UserRecord struct {
	Row   int    `csv:"-" json:"-"`
	Name  string `csv:"name" json:"name" validate:"required"`
	Email string `csv:"email" json:"email" validate:"required"`
	Role  string `csv:"role" json:"role" validate:"required"`
}

// ValidationError names the required fields a row is missing or has blank.
type ValidationError struct {
	Row     int
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: missing fields: %s", e.Row, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

// ParseUserRecord trims the required fields of row and validates that none are empty.
//
// Email syntax is not checked beyond presence.
func ParseUserRecord(row RawRow) (UserRecord, error) {
	name, _ := row.Get("name")
	email, _ := row.Get("email")
	role, _ := row.Get("role")

	rec := UserRecord{
		Row:   row.Index,
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  strings.TrimSpace(role),
	}

	if err := validate.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return UserRecord{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
		}

		missing := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			missing = append(missing, fe.Field())
		}
		return UserRecord{}, &ValidationError{Row: row.Index, Missing: missing}
	}

	return rec, nil
}

// Label identifies the record in console output.
func (u UserRecord) Label() string {
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}
