// internal/storage/models/receipt.go
package models

import "time"

// Receipt is one finished ledger transaction.
type Receipt struct {
	BaseModel
	TxID          uint64    `gorm:"uniqueIndex;not null"`
	Name          string    `gorm:"not null;type:varchar(100)"`
	Sender        string    `gorm:"index;not null;type:varchar(44)"`
	Status        string    `gorm:"not null;type:varchar(20)"`
	ErrorKind     string    `gorm:"type:varchar(32)"`
	ErrorMessage  string    `gorm:"type:text"`
	EventCount    int       `gorm:"default:0"`
	StartedAt     time.Time `gorm:"index;not null"`
	ExecutionTime float64   `gorm:"type:decimal(10,3)"`
}
