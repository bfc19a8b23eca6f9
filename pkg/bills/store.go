// Package bills is the persistence adapter for expense records. Every
// operation is scoped to one owner; nothing here can read or touch another
// user's rows.
package bills

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"billscan/models"
)

const (
	maxPlaceLen = 200
	maxLimit    = 100
	// DefaultLimit is used when the caller did not ask for a page size.
	DefaultLimit = 10
)

// Input carries the caller-supplied fields for create and partial update.
// Pointer fields distinguish "absent" from zero values on update.
type Input struct {
	Place *string    `json:"place"`
	Mode  *string    `json:"mode"`
	Date  *time.Time `json:"date"`
	Price *float64   `json:"price"`
}

// Page is one page of an owner's bills, newest expense first.
type Page struct {
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int64         `json:"totalPages"`
	Bills      []models.Bill `json:"bills"`
}

// Create validates all fields and inserts a new bill for userID. Fields are
// checked in order place, mode, date, price; the first failure is returned
// as *ValidationError and nothing is written.
func Create(db *gorm.DB, userID uint, in Input) (*models.Bill, error) {
	if in.Place == nil {
		return nil, &ValidationError{Field: "place", Reason: "place is required"}
	}
	place, err := checkPlace(*in.Place)
	if err != nil {
		return nil, err
	}
	if in.Mode == nil {
		return nil, &ValidationError{Field: "mode", Reason: "payment mode is required"}
	}
	if err := checkMode(*in.Mode); err != nil {
		return nil, err
	}
	if in.Date == nil {
		return nil, &ValidationError{Field: "date", Reason: "date is required"}
	}
	if err := checkDate(*in.Date); err != nil {
		return nil, err
	}
	if in.Price == nil {
		return nil, &ValidationError{Field: "price", Reason: "price is required"}
	}
	if err := checkPrice(*in.Price); err != nil {
		return nil, err
	}

	b := models.Bill{
		UserID: userID,
		Place:  place,
		Mode:   *in.Mode,
		Date:   *in.Date,
		Price:  *in.Price,
	}
	if err := db.Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// Insert writes an already-sanitized bill (the ingestion path). No field
// validation happens here; the sanitizer guarantees the invariants.
func Insert(db *gorm.DB, b *models.Bill) error {
	return db.Create(b).Error
}

// ClampPage normalizes user-supplied pagination: page at least 1, limit
// within [1, maxLimit], non-positive limit falling back to DefaultLimit.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// List returns one page of the owner's bills ordered by expense date
// descending, with offset pagination.
func List(db *gorm.DB, userID uint, page, limit int) (*Page, error) {
	page, limit = ClampPage(page, limit)

	var total int64
	if err := db.Model(&models.Bill{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Bill
	err := db.Where("user_id = ?", userID).
		Order("date desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Bill{}
	}

	return &Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int64(math.Ceil(float64(total) / float64(limit))),
		Bills:      items,
	}, nil
}

// ParseID parses a bill id path parameter.
func ParseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidID
	}
	return uint(n), nil
}

// Update applies a partial update to one of the owner's bills. Only place,
// mode, date and price are mutable; each supplied field is validated before
// anything is written. A bill under a different owner reads as ErrNotFound.
func Update(db *gorm.DB, userID, id uint, in Input) (*models.Bill, error) {
	updates := map[string]any{}
	if in.Place != nil {
		place, err := checkPlace(*in.Place)
		if err != nil {
			return nil, err
		}
		updates["place"] = place
	}
	if in.Mode != nil {
		if err := checkMode(*in.Mode); err != nil {
			return nil, err
		}
		updates["mode"] = *in.Mode
	}
	if in.Date != nil {
		if err := checkDate(*in.Date); err != nil {
			return nil, err
		}
		updates["date"] = *in.Date
	}
	if in.Price != nil {
		if err := checkPrice(*in.Price); err != nil {
			return nil, err
		}
		updates["price"] = *in.Price
	}

	var b models.Bill
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(updates) == 0 {
		return &b, nil
	}
	if err := db.Model(&b).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func checkPlace(place string) (string, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return "", &ValidationError{Field: "place", Reason: "place must not be empty"}
	}
	if len(place) > maxPlaceLen {
		return "", &ValidationError{Field: "place", Reason: "place cannot exceed 200 characters"}
	}
	return place, nil
}

func checkMode(mode string) error {
	if !models.ValidMode(mode) {
		return &ValidationError{Field: "mode", Reason: "invalid payment mode"}
	}
	return nil
}

func checkDate(t time.Time) error {
	if t.IsZero() {
		return &ValidationError{Field: "date", Reason: "invalid date"}
	}
	return nil
}

func checkPrice(p float64) error {
	if math.IsNaN(p) || p < 0 {
		return &ValidationError{Field: "price", Reason: "price must be a positive number"}
	}
	return nil
}
