package handler

import (
	"time"

	"github.com/iliyamo/college-housing/internal/model"
	"github.com/iliyamo/college-housing/internal/service"
	"github.com/iliyamo/college-housing/internal/utils"
)

// Response shapes.  Secrets (password and token hashes) and the
// verification document URLs of other users' units never leave the API.

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userResp struct {
	ID        uint64    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Photo     string    `json:"photo,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

type authResp struct {
	User    userResp  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUser(u model.User) userResp {
	return userResp{
		ID: u.ID, FullName: u.FullName, Email: u.Email, Phone: u.Phone, Photo: u.Photo,
		Role: u.Role, Status: string(u.Status), Verified: u.Verified, CreatedAt: u.CreatedAt,
	}
}

func toUsers(us []model.User) []userResp {
	out := make([]userResp, 0, len(us))
	for _, u := range us {
		out = append(out, toUser(u))
	}
	return out
}

func toAuth(s service.Session) authResp {
	return authResp{
		User:    toUser(s.User),
		Access:  accessPart(s.Tokens.Access),
		Refresh: tokenPart{Token: s.Tokens.Refresh.Raw, Expires: s.Tokens.Refresh.Exp},
	}
}

func accessPart(a utils.AccessToken) tokenPart { return tokenPart{Token: a.Token, Expires: a.Exp} }

type unitResp struct {
	ID                 uint64       `json:"id"`
	OwnerID            uint64       `json:"owner_id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Location           string       `json:"location"`
	Address            string       `json:"address"`
	Size               int          `json:"size"`
	Bedrooms           int          `json:"bedrooms"`
	Bathrooms          int          `json:"bathrooms"`
	Category           string       `json:"category"`
	Available          bool         `json:"available"`
	Furnished          bool         `json:"furnished"`
	MonthlyPrice       float64      `json:"monthly_price"`
	ContactPhone       string       `json:"contact_phone"`
	WhatsApp           string       `json:"whatsapp,omitempty"`
	PropertyLevel      int          `json:"property_level"`
	PropertyNumber     string       `json:"property_number,omitempty"`
	Insurance          float64      `json:"insurance"`
	Deposit            float64      `json:"deposit"`
	Images             []string     `json:"images"`
	IDCardURL          string       `json:"id_card_url,omitempty"`
	TitleDeedURL       string       `json:"title_deed_url,omitempty"`
	ElectricityBillURL string       `json:"electricity_bill_url,omitempty"`
	Rating             float64      `json:"rating"`
	RatingQuantity     int          `json:"rating_quantity"`
	IsVerified         bool         `json:"is_verified"`
	Status             string       `json:"status"`
	CreatedAt          time.Time    `json:"created_at"`
	Reviews            []reviewResp `json:"reviews,omitempty"`
}

// toUnit renders a unit.  withDocs exposes the verification documents,
// which only the owner and admins may see.
func toUnit(u model.Unit, withDocs bool) unitResp {
	r := unitResp{
		ID: u.ID, OwnerID: u.OwnerID, Title: u.Title, Description: u.Description,
		Location: u.Location, Address: u.Address, Size: u.Size, Bedrooms: u.Bedrooms,
		Bathrooms: u.Bathrooms, Category: u.Category, Available: u.Available, Furnished: u.Furnished,
		MonthlyPrice: u.MonthlyPrice, ContactPhone: u.ContactPhone, WhatsApp: u.WhatsApp,
		PropertyLevel: u.PropertyLevel, PropertyNumber: u.PropertyNumber, Insurance: u.Insurance,
		Deposit: u.Deposit, Images: u.Images, Rating: u.Rating, RatingQuantity: u.RatingQuantity,
		IsVerified: u.IsVerified, Status: string(u.Status), CreatedAt: u.CreatedAt,
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	if withDocs {
		r.IDCardURL, r.TitleDeedURL, r.ElectricityBillURL = u.IDCardURL, u.TitleDeedURL, u.ElectricityBillURL
	}
	return r
}

func toUnits(us []model.Unit, withDocs bool) []unitResp {
	out := make([]unitResp, 0, len(us))
	for _, u := range us {
		out = append(out, toUnit(u, withDocs))
	}
	return out
}

type requestResp struct {
	ID        uint64    `json:"id"`
	UnitID    uint64    `json:"unit_id"`
	UserID    uint64    `json:"user_id"`
	Status    string    `json:"status"`
	Messages  []string  `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRequest(r model.Request) requestResp {
	return requestResp{ID: r.ID, UnitID: r.UnitID, UserID: r.UserID, Status: string(r.Status),
		Messages: r.Messages, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type appointmentResp struct {
	Number         string      `json:"number"`
	UserID         uint64      `json:"user_id"`
	UnitID         uint64      `json:"unit_id"`
	Status         string      `json:"status"`
	Date           *time.Time  `json:"date,omitempty"`
	AvailableDates []time.Time `json:"available_dates"`
	Notes          string      `json:"notes,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func toAppointment(a model.Appointment) appointmentResp {
	return appointmentResp{Number: a.Number, UserID: a.UserID, UnitID: a.UnitID, Status: string(a.Status),
		Date: a.Date, AvailableDates: a.AvailableDates, Notes: a.Notes, CreatedAt: a.CreatedAt}
}

func toAppointments(as []model.Appointment) []appointmentResp {
	out := make([]appointmentResp, 0, len(as))
	for _, a := range as {
		out = append(out, toAppointment(a))
	}
	return out
}

type reviewResp struct {
	ID        uint64    `json:"id"`
	AuthorID  uint64    `json:"author_id"`
	UnitID    uint64    `json:"unit_id"`
	Review    string    `json:"review"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

func toReview(r model.Review) reviewResp {
	return reviewResp{ID: r.ID, AuthorID: r.AuthorID, UnitID: r.UnitID, Review: r.Review,
		Rating: r.Rating, CreatedAt: r.CreatedAt}
}

func toReviews(rs []model.Review) []reviewResp {
	out := make([]reviewResp, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReview(r))
	}
	return out
}
