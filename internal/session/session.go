// Package session carries the caller identity through the cart core.
// Handlers build a Session from request headers and pass it down
// explicitly; nothing in the core reads ambient auth state.
package session

// Session identifies the current shopper. A logged-in user has UserID
// set; an anonymous visitor has GuestID. Both are set right after
// login, until the client asks for its guest cart to be merged.
type Session struct {
	UserID  string
	GuestID string
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Key returns the id the backing cart store is keyed by.
func (s Session) Key() string {
	if s.Authenticated() {
		return s.UserID
	}
	return s.GuestID
}

func Authenticated(userID string) Session {
	return Session{UserID: userID}
}

func Guest(guestID string) Session {
	return Session{GuestID: guestID}
}
