package model

import "time"

// Unit categories.
const (
	CategoryApartment = "apartment"
	CategoryVilla     = "villa"
	CategoryStudio    = "studio"
	CategoryDuplex    = "duplex"
)

// Unit size bounds in square metres.
const (
	MinUnitSize = 50
	MaxUnitSize = 500
)

// Unit is a rentable listing as stored in the `units` table.  New units
// start inactive and unverified until an admin accepts the matching
// Request.  Rating and RatingQuantity are derived from active reviews and
// must only be written by the review aggregator.
type Unit struct {
	ID                 uint64
	OwnerID            uint64
	Title              string
	Description        string
	Location           string
	Address            string
	Size               int
	Bedrooms           int
	Bathrooms          int
	Category           string
	Available          bool
	Furnished          bool
	MonthlyPrice       float64
	ContactPhone       string
	WhatsApp           string
	PropertyLevel      int
	PropertyNumber     string
	Insurance          float64
	Deposit            float64
	Images             []string
	IDCardURL          string
	TitleDeedURL       string
	ElectricityBillURL string
	Rating             float64
	RatingQuantity     int
	IsVerified         bool
	Status             UnitStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UnitPatch is the whitelisted set of fields an owner may change after
// submission.  Nil fields are left untouched.
type UnitPatch struct {
	Available    *bool
	Furnished    *bool
	MonthlyPrice *float64
	ContactPhone *string
	WhatsApp     *string
	Title        *string
	Description  *string
	Location     *string
	Address      *string
	Insurance    *float64
	Deposit      *float64
	Images       []string
}

// Empty reports whether the patch changes nothing.
func (p UnitPatch) Empty() bool {
	return p.Available == nil && p.Furnished == nil && p.MonthlyPrice == nil &&
		p.ContactPhone == nil && p.WhatsApp == nil && p.Title == nil &&
		p.Description == nil && p.Location == nil && p.Address == nil &&
		p.Insurance == nil && p.Deposit == nil && p.Images == nil
}

// ValidCategory reports whether c is one of the known unit categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryApartment, CategoryVilla, CategoryStudio, CategoryDuplex:
		return true
	}
	return false
}
