package services

import (
	"strings"
	"unicode/utf8"

	"checkout-service/internal/domain"
)

type FieldCode string

const (
	CodeUnauthenticated   FieldCode = "UNAUTHENTICATED"
	CodeMissingName       FieldCode = "MISSING_NAME"
	CodeInvalidEmail      FieldCode = "INVALID_EMAIL"
	CodeInvalidPhone      FieldCode = "INVALID_PHONE"
	CodeMissingAddress    FieldCode = "MISSING_ADDRESS"
	CodeIncompleteAddress FieldCode = "INCOMPLETE_ADDRESS"
	CodeEmptyCart         FieldCode = "EMPTY_CART"
	CodeInvalidItem       FieldCode = "INVALID_ITEM"
)

const minPhoneLength = 10

type FieldError struct {
	Code    FieldCode
	Message string
}

func (e *FieldError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func fieldError(code FieldCode, msg string) *FieldError {
	return &FieldError{Code: code, Message: msg}
}

// ValidateCheckout applies the form rules in order and returns the first
// failure, or nil. The email check only looks for an "@".
func ValidateCheckout(form domain.CheckoutForm, identity string) *FieldError {
	switch {
	case identity == "":
		return fieldError(CodeUnauthenticated, "Please login to place an order")
	case form.FirstName == "" || form.LastName == "":
		return fieldError(CodeMissingName, "Please enter your full name")
	case form.Email == "" || !strings.Contains(form.Email, "@"):
		return fieldError(CodeInvalidEmail, "Please enter a valid email address")
	case utf8.RuneCountInString(form.Phone) < minPhoneLength:
		return fieldError(CodeInvalidPhone, "Please enter a valid phone number")
	case form.Address1 == "":
		return fieldError(CodeMissingAddress, "Please enter your address")
	case form.City == "" || form.Pincode == "" || form.State == "":
		return fieldError(CodeIncompleteAddress, "Please complete your address details")
	}
	return nil
}

func ValidateCart(lines []domain.CartLine) *FieldError {
	if len(lines) == 0 {
		return fieldError(CodeEmptyCart, "Your cart is empty")
	}
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 || l.UnitPrice < 0 {
			return fieldError(CodeInvalidItem, "Your cart contains an invalid item")
		}
	}
	return nil
}
