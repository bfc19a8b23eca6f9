package models

import "time"

// Payment modes accepted on a bill.
const (
	ModeUPI  = "UPI"
	ModeCash = "Cash"
	ModeCard = "Card"
)

// ValidMode reports whether m is one of the accepted payment modes.
func ValidMode(m string) bool {
	return m == ModeUPI || m == ModeCash || m == ModeCard
}

// Bill is a single expense record extracted from a receipt (or entered
// manually), always owned by exactly one user.
type Bill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	UserID    uint      `gorm:"index;not null;index:idx_bills_user_date,priority:1" json:"userId"`
	Place     string    `gorm:"size:200;not null" json:"place"`
	Mode      string    `gorm:"size:16;not null;default:UPI" json:"mode"`
	Date      time.Time `gorm:"not null;index:idx_bills_user_date,priority:2,sort:desc" json:"date"`
	Price     float64   `gorm:"not null" json:"price"`
	RawText   string    `gorm:"size:5000" json:"rawText,omitempty"`
	ImagePath string    `gorm:"size:500" json:"imagePath,omitempty"`
}
