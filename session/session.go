package session

// User is the profile summary held by an authenticated session. The request
// executor never looks inside it.
type User struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Username          string  `json:"username"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	PhoneNumber       string  `json:"phoneNumber,omitempty"`
	ProfilePictureURL string  `json:"profilePictureUrl,omitempty"`
	CampusID          string  `json:"campusId,omitempty"`
	Campus            string  `json:"campus,omitempty"`
	IsVerified        bool    `json:"isVerified"`
	AverageRating     float64 `json:"averageRating,omitempty"`
	TotalReviews      int     `json:"totalReviews,omitempty"`
}

// UserPatch carries a partial profile update. Nil fields are left unchanged.
type UserPatch struct {
	Email             *string
	Username          *string
	FirstName         *string
	LastName          *string
	PhoneNumber       *string
	ProfilePictureURL *string
	CampusID          *string
	Campus            *string
	IsVerified        *bool
	AverageRating     *float64
	TotalReviews      *int
}

// Session is the authenticated identity of the client.
//
// RefreshToken is the empty string when logged out, never absent, so the
// persisted form always has the field.
type Session struct {
	User            *User  `json:"user"`
	AccessToken     string `json:"accessToken,omitempty"`
	RefreshToken    string `json:"refreshToken"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
}

// Anonymous is the logged out state.
func Anonymous() Session {
	return Session{}
}

// Clone returns a deep copy so callers can't mutate the store through the
// user pointer.
func (s Session) Clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// DisplayName is "First Last", falling back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

func (u *User) apply(p UserPatch) {
	setIf(&u.Email, p.Email)
	setIf(&u.Username, p.Username)
	setIf(&u.FirstName, p.FirstName)
	setIf(&u.LastName, p.LastName)
	setIf(&u.PhoneNumber, p.PhoneNumber)
	setIf(&u.ProfilePictureURL, p.ProfilePictureURL)
	setIf(&u.CampusID, p.CampusID)
	setIf(&u.Campus, p.Campus)
	setIf(&u.IsVerified, p.IsVerified)
	setIf(&u.AverageRating, p.AverageRating)
	setIf(&u.TotalReviews, p.TotalReviews)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
