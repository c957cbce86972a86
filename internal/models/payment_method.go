package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Card networks derived from the leading digit
const (
	NetworkVisa       = "visa"
	NetworkMastercard = "mastercard"
	NetworkAmex       = "amex"
	NetworkDiscover   = "discover"
	NetworkUnknown    = "unknown"
)

// PaymentMethod is a stored card-like instrument owned by one user.
// The full card number is persisted but never serialized; CVV is
// validated on create and never stored.
type PaymentMethod struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	CardNumber   string    `db:"card_number" json:"-"`
	MaskedNumber string    `db:"-" json:"card_number"`
	HolderName   string    `db:"holder_name" json:"holder_name"`
	ExpiryMonth  string    `db:"expiry_month" json:"expiry_month"`
	ExpiryYear   string    `db:"expiry_year" json:"expiry_year"`
	Network      string    `db:"network" json:"network"`
	IsDefault    bool      `db:"is_default" json:"is_default"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CardInput carries the card fields accepted on create
type CardInput struct {
	CardNumber  string `json:"card_number"`
	HolderName  string `json:"holder_name"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
	SetDefault  bool   `json:"set_default"`
}

// NormalizeCardNumber strips spaces and dashes from a card number
func NormalizeCardNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(number, "-", "")
}

// ValidateCard checks format of the card fields: 16-digit number,
// month 01-12, 4-digit year not in the past, 3-4 digit CVV.
func ValidateCard(in CardInput, now time.Time) error {
	number := NormalizeCardNumber(in.CardNumber)

	if len(number) != 16 || !isDigits(number) {
		return fmt.Errorf("card_number must be 16 digits")
	}

	if in.HolderName == "" {
		return fmt.Errorf("holder_name is required")
	}

	month, err := strconv.Atoi(in.ExpiryMonth)
	if err != nil || len(in.ExpiryMonth) != 2 || month < 1 || month > 12 {
		return fmt.Errorf("expiry_month must be between 01 and 12")
	}

	year, err := strconv.Atoi(in.ExpiryYear)
	if err != nil || len(in.ExpiryYear) != 4 {
		return fmt.Errorf("expiry_year must be 4 digits")
	}

	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return fmt.Errorf("card is expired")
	}

	if l := len(in.CVV); l < 3 || l > 4 || !isDigits(in.CVV) {
		return fmt.Errorf("cvv must be 3 or 4 digits")
	}

	return nil
}

// DeriveNetwork computes the card network tag from the leading digit
func DeriveNetwork(cardNumber string) string {
	number := NormalizeCardNumber(cardNumber)

	if number == "" {
		return NetworkUnknown
	}

	switch number[0] {
	case '4':
		return NetworkVisa
	case '5', '2':
		return NetworkMastercard
	case '3':
		return NetworkAmex
	case '6':
		return NetworkDiscover
	default:
		return NetworkUnknown
	}
}

// MaskCardNumber keeps only the last four digits visible
func MaskCardNumber(cardNumber string) string {
	number := NormalizeCardNumber(cardNumber)

	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}

// Sanitize returns a copy safe for API responses: card number masked, never full
func (m PaymentMethod) Sanitize() PaymentMethod {
	m.MaskedNumber = MaskCardNumber(m.CardNumber)
	m.CardNumber = ""
	return m
}

// NewPaymentMethod builds a method from validated card input
func NewPaymentMethod(userID string, in CardInput) *PaymentMethod {
	number := NormalizeCardNumber(in.CardNumber)

	return &PaymentMethod{
		ID:          fmt.Sprintf("pm-%s", uuid.New().String()[:8]),
		UserID:      userID,
		CardNumber:  number,
		HolderName:  in.HolderName,
		ExpiryMonth: in.ExpiryMonth,
		ExpiryYear:  in.ExpiryYear,
		Network:     DeriveNetwork(number),
		IsActive:    true,
		CreatedAt:   GetCurrentTime(),
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
