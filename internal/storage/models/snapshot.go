// internal/storage/models/snapshot.go
package models

import "time"

type PairSnapshot struct {
	BaseModel
	Pair       string    `gorm:"index;not null;type:varchar(44)"`
	TokenA     string    `gorm:"index;type:varchar(44)"`
	TokenB     string    `gorm:"index;type:varchar(44)"`
	ReserveA   string    `gorm:"type:numeric(78,0);not null"`
	ReserveB   string    `gorm:"type:numeric(78,0);not null"`
	KLast      string    `gorm:"type:numeric(156,0)"`
	IsBonding  bool      `gorm:"not null"`
	TxID       uint64    `gorm:"index"`
	LastUpdate time.Time `gorm:"index;not null"`
}

type PositionSnapshot struct {
	BaseModel
	Token        string    `gorm:"index;not null;type:varchar(44)"`
	Pair         string    `gorm:"not null;type:varchar(44)"`
	Creator      string    `gorm:"index;not null;type:varchar(44)"`
	Symbol       string    `gorm:"not null;type:varchar(32)"`
	Status       string    `gorm:"not null;type:varchar(20)"`
	AssetRaised  string    `gorm:"type:numeric(78,0);not null"`
	TokenReserve string    `gorm:"type:numeric(78,0);not null"`
	ProgressBps  uint32    `gorm:"not null"`
	Price        float64   `gorm:"type:decimal(38,18)"`
	Trades       uint64    `gorm:"default:0"`
	LastUpdate   time.Time `gorm:"index;not null"`
}
