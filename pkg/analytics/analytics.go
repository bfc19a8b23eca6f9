// Package analytics computes spending aggregates over a user's bills.
// All calendar bucketing is UTC so results are identical for every client.
package analytics

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"billscan/models"
)

// MonthlyAggregate is the total spend of one calendar month.
type MonthlyAggregate struct {
	Month      string  `json:"month"` // YYYY-MM
	TotalSpend float64 `json:"totalSpend"`
}

// MonthSummary describes spending within the current calendar month.
type MonthSummary struct {
	Month      string  `json:"month"`
	BillsCount int64   `json:"billsCount"`
	TotalSpend float64 `json:"totalSpend"`
}

// MonthlySpend groups the user's bills by UTC calendar month, summing price
// per month. Results are ordered ascending; a user without bills gets an
// empty slice.
func MonthlySpend(db *gorm.DB, userID uint) ([]MonthlyAggregate, error) {
	rows, err := db.Model(&models.Bill{}).
		Select(`to_char(date AT TIME ZONE 'UTC', 'YYYY-MM') AS month, sum(price) AS total_spend`).
		Where("user_id = ?", userID).
		Group("month").
		Order("month asc").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MonthlyAggregate{}
	for rows.Next() {
		var m MonthlyAggregate
		if err := rows.Scan(&m.Month, &m.TotalSpend); err != nil {
			return nil, err
		}
		m.TotalSpend = Round2(m.TotalSpend)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CurrentMonthSummary counts and sums the user's bills dated within the UTC
// calendar month containing now. The window is half-open: a bill at the
// first instant of next month is excluded.
func CurrentMonthSummary(db *gorm.DB, userID uint, now time.Time) (*MonthSummary, error) {
	start, end := MonthWindow(now)

	var items []models.Bill
	err := db.Where("user_id = ? AND date >= ? AND date < ?", userID, start, end).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	var total float64
	for _, b := range items {
		total += b.Price
	}

	return &MonthSummary{
		Month:      MonthLabel(now),
		BillsCount: int64(len(items)),
		TotalSpend: Round2(total),
	}, nil
}

// MonthWindow returns [start of the UTC month containing t, start of the
// next month).
func MonthWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MonthLabel formats the UTC year-month of t as YYYY-MM.
func MonthLabel(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d-%02d", u.Year(), int(u.Month()))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
