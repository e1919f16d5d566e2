package models

import "time"

// Base is the base model for all entities. IDs are numeric auto-increment
// values because the reading frontend dispatches identifier lookups on
// "numeric means id, otherwise slug".
type Base struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}
