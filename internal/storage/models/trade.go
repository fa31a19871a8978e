// internal/storage/models/trade.go
package models

import "time"

// Venue names where a trade was executed.
const (
	VenueCurve = "curve"
	VenuePair  = "pair"
)

// Trade is a buy or sell on the bonding curve or through the router.
// Amounts are raw integer strings.
type Trade struct {
	BaseModel
	TxID      uint64    `gorm:"index;not null"`
	Venue     string    `gorm:"not null;type:varchar(10)"`
	Token     string    `gorm:"index;not null;type:varchar(44)"`
	Trader    string    `gorm:"index;not null;type:varchar(44)"`
	Recipient string    `gorm:"not null;type:varchar(44)"`
	IsBuy     bool      `gorm:"not null"`
	AmountIn  string    `gorm:"type:numeric(78,0);not null"`
	AmountOut string    `gorm:"type:numeric(78,0);not null"`
	Tax       string    `gorm:"type:numeric(78,0);not null"`
	Price     float64   `gorm:"type:decimal(38,18)"`
	BlockTime time.Time `gorm:"index;not null"`
}
