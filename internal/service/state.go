package service

import (
	"sync"
	"time"

	"storefront/internal/shop"
)

// Session is the single logged-in user of the instance
type Session struct {
	ID        string    `json:"session_id"`
	Username  string    `json:"username"`
	StartedAt time.Time `json:"started_at"`
}

// State is the application state shared by every service. All access goes through mu,
// so requests are applied one at a time.
type State struct {
	mu       sync.Mutex
	catalog  *shop.Catalog
	cart     shop.Cart
	checkout *shop.Checkout
	txIDs    shop.TransactionIDs
	session  *Session
	now      func() time.Time
}

// NewState creates an empty state with no session
func NewState() *State {
	cat, _ := shop.NewCatalog(nil)
	return &State{
		catalog:  cat,
		checkout: shop.NewCheckout(),
		now:      time.Now,
	}
}

// ActiveSession returns the current session, if any
func (s *State) ActiveSession() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// requireSession must be called with mu held
func (s *State) requireSession() (*Session, error) {
	if s.session == nil {
		return nil, shop.ErrNotLoggedIn
	}
	return s.session, nil
}

// endSession returns cart units to stock, abandons checkout and forgets the session.
// It must be called with mu held and reports the username that was logged in.
func (s *State) endSession() string {
	if s.session == nil {
		return ""
	}
	username := s.session.Username
	s.cart.Release(s.catalog)
	s.checkout.Reset()
	s.session = nil
	return username
}
