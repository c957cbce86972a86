package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateEventID generates a new unique ID for an event
func GenerateEventID() string {
	id := uuid.New().String()

	return fmt.Sprintf("evt-%s", id[:8])
}

// FormatSequentialID renders a business identifier from a prefix and counter value,
// e.g. ("ORD", 1) -> "ORD001". The suffix widens naturally past 999.
func FormatSequentialID(prefix string, value int64) string {
	return fmt.Sprintf("%s%03d", prefix, value)
}

// Sequential ID prefixes per entity type
const (
	PrefixOrder       = "ORD"
	PrefixPayment     = "PAY"
	PrefixInventory   = "INV"
	PrefixFinance     = "FIN"
	PrefixHarvest     = "HB"
	PrefixDistributor = "D"
)

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}
