package base

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"docpay/internal/domain/session"
)

// kenyanMobile matches normalized Safaricom/Airtel numbers in
// international format without the plus sign.
var kenyanMobile = []*regexp.Regexp{
	regexp.MustCompile(`^254[17]\d{8}$`),
	regexp.MustCompile(`^2547[0-9]\d{7}$`),
}

// NormalizePhone validates a Kenyan mobile number and returns it in
// canonical 254XXXXXXXXX form.
func NormalizePhone(phone string) (string, error) {
	normalized := strings.ReplaceAll(phone, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.TrimPrefix(normalized, "+")

	// Local format: 07XX... / 01XX... -> 2547XX... / 2541XX...
	if strings.HasPrefix(normalized, "0") {
		normalized = "254" + normalized[1:]
	}

	for _, pattern := range kenyanMobile {
		if pattern.MatchString(normalized) {
			return normalized, nil
		}
	}
	return "", &session.ValidationError{
		Field:   "phone",
		Message: fmt.Sprintf("%q is not a valid Kenyan mobile number", phone),
	}
}

// CheckoutValidator validates the commercial terms of a checkout before
// any session is created.
type CheckoutValidator struct {
	minAmount int
	maxAmount int
}

// NewCheckoutValidator creates a validator with the configured amount limits.
func NewCheckoutValidator(minAmount, maxAmount int) *CheckoutValidator {
	return &CheckoutValidator{minAmount: minAmount, maxAmount: maxAmount}
}

// ValidateAmount enforces the configured amount window.
func (v *CheckoutValidator) ValidateAmount(amount int) error {
	if amount <= 0 {
		return &session.ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	if amount < v.minAmount {
		return &session.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("amount must be at least %d KES", v.minAmount),
		}
	}
	if v.maxAmount > 0 && amount > v.maxAmount {
		return &session.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("amount must not exceed %d KES", v.maxAmount),
		}
	}
	return nil
}

// ValidateDestination checks the result-delivery address is a
// syntactically valid email.
func (v *CheckoutValidator) ValidateDestination(destination string) error {
	if strings.TrimSpace(destination) == "" {
		return &session.ValidationError{Field: "destination", Message: "destination email is required"}
	}
	if _, err := mail.ParseAddress(destination); err != nil {
		return &session.ValidationError{Field: "destination", Message: "destination must be a valid email address"}
	}
	return nil
}

// ValidateItemType restricts checkouts to purchasable document kinds.
func (v *CheckoutValidator) ValidateItemType(itemType string) error {
	switch itemType {
	case "resume", "cover_letter", "template":
		return nil
	}
	return &session.ValidationError{
		Field:   "itemType",
		Message: fmt.Sprintf("%q is not a purchasable item type", itemType),
	}
}
