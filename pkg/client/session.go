package client

import (
	"context"
	"sync"

	"github.com/keepup/keepup-api/internal/model"
)

// Session tracks who is signed in on a Client. The client clears its token
// on any 401, and the session then reports itself signed out.
type Session struct {
	client *Client

	mu   sync.RWMutex
	user *model.User
}

func NewSession(c *Client) *Session {
	return &Session{client: c}
}

func (s *Session) Client() *Client { return s.client }

func (s *Session) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	res, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.setUser(res.User)
	return res.User, nil
}

func (s *Session) Login(ctx context.Context, login, password string) (*model.User, error) {
	res, err := s.client.Login(ctx, login, password)
	if err != nil {
		return nil, err
	}
	s.setUser(res.User)
	return res.User, nil
}

// Resume restores a session from a saved token by asking the server who
// it belongs to.
func (s *Session) Resume(ctx context.Context, token string) (*model.User, error) {
	s.client.SetToken(token)
	user, err := s.client.Me(ctx)
	if err != nil {
		s.setUser(nil)
		return nil, err
	}
	s.setUser(user)
	return user, nil
}

// Logout signs out locally even when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.setUser(nil)
	return s.client.Logout(ctx)
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.client.Token() != ""
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *model.User {
	if !s.IsAuthenticated() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setUser(u *model.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}
