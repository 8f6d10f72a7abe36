// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidBooking marks a booking request that must not be sent
var ErrInvalidBooking = errors.New("invalid booking request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims the free text fields
func (b BookingRequest) Normalize() BookingRequest {
	return BookingRequest{
		Name:  strings.TrimSpace(b.Name),
		Email: strings.TrimSpace(b.Email),
		Date:  strings.TrimSpace(b.Date),
		Time:  strings.TrimSpace(b.Time),
	}
}

// Validate checks the required fields the way the form does
func (b BookingRequest) Validate() error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeField(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidBooking, strings.Join(problems, "; "))
}

func describeField(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "datetime":
		if field == "date" {
			return "date must look like 2006-01-02"
		}
		return "time must look like 15:04"
	}
	return field + " is invalid"
}
