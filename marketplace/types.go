package marketplace

import (
	"encoding/json"

	"github.com/Joelisking/projectx-client/internal/utils"
	"github.com/Joelisking/projectx-client/session"
	"github.com/Joelisking/projectx-client/tokens"
)

// Cache tags shared by queries and the mutations that change them.
const (
	TagUsers       = "users"
	TagMarketplace = "marketplace"
	TagSafety      = "safety"
)

// APIUser is the user record as the backend returns it.
type APIUser struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Username          string     `json:"username"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	PhoneNumber       *string    `json:"phone_number"`
	ProfilePictureURL *string    `json:"profile_picture_url"`
	StudentID         *string    `json:"student_id"`
	CampusID          *string    `json:"campus_id"`
	Campus            campusName `json:"campus"`
	IsVerified        bool       `json:"is_verified"`
	IsActive          bool       `json:"is_active"`
	AccountStatus     string     `json:"account_status"`
	AverageRating     string     `json:"average_rating"`
	TotalReviews      int        `json:"total_reviews"`
}

// campusName accepts either the campus name or a nested campus object.
type campusName string

func (c *campusName) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = campusName(name)
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = campusName(obj.Name)
	return nil
}

// ToSession maps the backend record onto the session user.
func (u *APIUser) ToSession() *session.User {
	return &session.User{
		ID:                u.ID,
		Email:             u.Email,
		Username:          u.Username,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		PhoneNumber:       utils.Value(u.PhoneNumber),
		ProfilePictureURL: utils.Value(u.ProfilePictureURL),
		CampusID:          utils.Value(u.CampusID),
		Campus:            string(u.Campus),
		IsVerified:        u.IsVerified,
		AverageRating:     utils.ParseFloatOrZero(u.AverageRating),
		TotalReviews:      u.TotalReviews,
	}
}

// authResponse is returned by login and registration. Older backends return
// the bare user without the wrapper.
type authResponse struct {
	User   *APIUser          `json:"user"`
	Tokens *tokens.TokenPair `json:"tokens"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	CampusID        *string `json:"campus_id,omitempty"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm"`
}

// ProfileUpdate is a partial profile update. Nil fields are not sent.
type ProfileUpdate struct {
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
	PhoneNumber       *string `json:"phone_number,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	CampusID          *string `json:"campus_id,omitempty"`
}

// ListingFilter narrows a listing search. Slice filters repeat the query key.
type ListingFilter struct {
	Category  []string
	Campus    []string
	Condition []string
	Status    []string
	Search    string
	Ordering  string
	Page      int
}

type Listing struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	Condition    string `json:"condition"`
	Status       string `json:"status"`
	Location     string `json:"location"`
	Seller       string `json:"seller"`
	PrimaryImage string `json:"primary_image"`
	CreatedAt    string `json:"created_at"`
}

// PriceValue is the decimal price as a float, zero when unparseable.
func (l Listing) PriceValue() float64 {
	return utils.ParseFloatOrZero(l.Price)
}

type ListingPage struct {
	Count    int       `json:"count"`
	Next     *string   `json:"next"`
	Previous *string   `json:"previous"`
	Results  []Listing `json:"results"`
}

type countResponse struct {
	Count int `json:"count"`
}
