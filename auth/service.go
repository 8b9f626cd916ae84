// Package auth wraps the authentication endpoints and keeps the local
// session in step with their results.
package auth

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tipzed/go-tipzed/client"
	"github.com/tipzed/go-tipzed/session"
)

const (
	loginPath    = "/auth/token/"
	registerPath = "/auth/register/"
	logoutPath   = "/auth/logout/"
	profilePath  = "/auth/profile/"
)

// Service is the authentication surface of the SDK.
type Service struct {
	client  *client.Client
	session *session.Manager
	log     zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service's logger. The default discards output.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates an authentication service.
func NewService(c *client.Client, sess *session.Manager, options ...ServiceOption) (*Service, error) {
	if c == nil {
		return nil, errors.New("[auth.NewService] client is required")
	}
	if sess == nil {
		return nil, errors.New("[auth.NewService] session manager is required")
	}

	s := &Service{
		client:  c,
		session: sess,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login exchanges credentials for a token pair and stores it. When no
// profile is cached yet, it is fetched and cached exactly once;
// a profile cached by an earlier session is reused as-is.
func (s *Service) Login(ctx context.Context, email, password string) (*session.User, error) {
	var resp tokenResponse
	if err := s.client.Do(ctx, http.MethodPost, loginPath, Credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if err := s.session.SetTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] persist tokens")
	}
	s.log.Info().Str("email", email).Msg("logged in")

	if cached, ok := s.session.User(); ok {
		return cached, nil
	}
	return s.Profile(ctx)
}

// Register creates an account. The response carries a token pair and
// the new profile, so the session is usable immediately.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*session.User, error) {
	var resp tokenResponse
	if err := s.client.Do(ctx, http.MethodPost, registerPath, req, &resp); err != nil {
		return nil, err
	}
	if err := s.session.SetTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return nil, errors.Wrap(err, "[Service.Register] persist tokens")
	}
	if err := s.session.SetUser(&resp.User); err != nil {
		return nil, errors.Wrap(err, "[Service.Register] cache user")
	}
	s.log.Info().Str("email", req.Email).Msg("registered")
	return &resp.User, nil
}

// Logout revokes the session server-side and always clears the local
// session, even when the network call fails: a user who asked to log
// out is logged out.
func (s *Service) Logout(ctx context.Context) error {
	reqErr := s.client.Do(ctx, http.MethodPost, logoutPath, nil, nil)

	if err := s.session.Clear(); err != nil {
		return errors.Wrap(err, "[Service.Logout] clear session")
	}
	s.log.Info().Msg("logged out")

	// A dead token is not a failed logout; the outcome is the same.
	if reqErr != nil && !client.IsAuthError(reqErr) {
		return reqErr
	}
	return nil
}

// Profile fetches the caller's profile and refreshes the cached copy.
func (s *Service) Profile(ctx context.Context) (*session.User, error) {
	var user session.User
	if err := s.client.Do(ctx, http.MethodGet, profilePath, nil, &user); err != nil {
		return nil, err
	}
	if err := s.session.SetUser(&user); err != nil {
		return nil, errors.Wrap(err, "[Service.Profile] cache user")
	}
	return &user, nil
}

// UpdateProfile patches the caller's profile and refreshes the cache
// with the backend's view of the result.
func (s *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*session.User, error) {
	var user session.User
	if err := s.client.Do(ctx, http.MethodPatch, profilePath, req, &user); err != nil {
		return nil, err
	}
	if err := s.session.SetUser(&user); err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateProfile] cache user")
	}
	return &user, nil
}
