package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCard() CardInput {
	return CardInput{
		CardNumber:  "4111 1111 1111 1234",
		HolderName:  "Ayesha Karim",
		ExpiryMonth: "09",
		ExpiryYear:  "2030",
		CVV:         "123",
	}
}

func TestValidateCard(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateCard(validCard(), now))

	tests := []struct {
		name   string
		mutate func(*CardInput)
	}{
		{"short number", func(c *CardInput) { c.CardNumber = "4111" }},
		{"non-digit number", func(c *CardInput) { c.CardNumber = "4111abcd11111234" }},
		{"missing holder", func(c *CardInput) { c.HolderName = "" }},
		{"month zero", func(c *CardInput) { c.ExpiryMonth = "00" }},
		{"month thirteen", func(c *CardInput) { c.ExpiryMonth = "13" }},
		{"single digit month", func(c *CardInput) { c.ExpiryMonth = "9" }},
		{"two digit year", func(c *CardInput) { c.ExpiryYear = "30" }},
		{"past year", func(c *CardInput) { c.ExpiryYear = "2025" }},
		{"short cvv", func(c *CardInput) { c.CVV = "12" }},
		{"long cvv", func(c *CardInput) { c.CVV = "12345" }},
		{"non-digit cvv", func(c *CardInput) { c.CVV = "12a" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			card := validCard()
			tc.mutate(&card)
			assert.Error(t, ValidateCard(card, now))
		})
	}
}

func TestValidateCard_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

	card := validCard()
	card.ExpiryMonth = "09"
	card.ExpiryYear = "2026"

	// A card expiring this month is still valid
	assert.NoError(t, ValidateCard(card, now))

	card.ExpiryMonth = "08"
	assert.Error(t, ValidateCard(card, now))
}

func TestDeriveNetwork(t *testing.T) {
	assert.Equal(t, NetworkVisa, DeriveNetwork("4111111111111234"))
	assert.Equal(t, NetworkMastercard, DeriveNetwork("5500000000000004"))
	assert.Equal(t, NetworkMastercard, DeriveNetwork("2221000000000009"))
	assert.Equal(t, NetworkAmex, DeriveNetwork("3400 0000 0000 009"))
	assert.Equal(t, NetworkDiscover, DeriveNetwork("6011000000000004"))
	assert.Equal(t, NetworkUnknown, DeriveNetwork("9999000000000001"))
	assert.Equal(t, NetworkUnknown, DeriveNetwork(""))
}

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "**** **** **** 1234", MaskCardNumber("4111-1111-1111-1234"))
	assert.Equal(t, "****", MaskCardNumber("12"))
}

func TestSanitize(t *testing.T) {
	method := NewPaymentMethod("u-1", validCard())

	safe := method.Sanitize()

	assert.Empty(t, safe.CardNumber)
	assert.Equal(t, "**** **** **** 1234", safe.MaskedNumber)
	// The original keeps the stored number
	assert.Equal(t, "4111111111111234", method.CardNumber)
}

func TestNewPaymentMethod(t *testing.T) {
	method := NewPaymentMethod("u-1", validCard())

	assert.True(t, method.IsActive)
	assert.False(t, method.IsDefault)
	assert.Equal(t, NetworkVisa, method.Network)
	assert.Contains(t, method.ID, "pm-")
	assert.Equal(t, "4111111111111234", method.CardNumber)
}
