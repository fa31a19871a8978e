// internal/storage/models/base.go
package models

import "time"

// BaseModel is the key shared by every row. Rows are append-only, so there is
// no update timestamp and no soft delete. CreatedAt is kept when the caller
// sets it, as gorm does for autoCreateTime columns.
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
