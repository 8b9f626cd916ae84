// Package creators reads the public creator catalog and manages the
// caller's own creator profile.
package creators

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/tipzed/go-tipzed/client"
)

const (
	catalogPath   = "/creators/all/"
	myProfilePath = "/creators/profile/me"
)

// Creator is a public creator listing.
type Creator struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	Category    string `json:"category,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	WalletID    int64  `json:"wallet_id"`
}

// UpdateRequest carries the editable creator profile fields. Nil
// fields are omitted.
type UpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Category    *string `json:"category,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

type listEnvelope struct {
	Status string    `json:"status"`
	Data   []Creator `json:"data"`
}

type creatorEnvelope struct {
	Status string  `json:"status"`
	Data   Creator `json:"data"`
}

// Service is the creator catalog surface of the SDK.
type Service struct {
	client *client.Client
}

// NewService creates a creators service.
func NewService(c *client.Client) (*Service, error) {
	if c == nil {
		return nil, errors.New("[creators.NewService] client is required")
	}
	return &Service{client: c}, nil
}

// All lists every creator in the catalog.
func (s *Service) All(ctx context.Context) ([]Creator, error) {
	var envelope listEnvelope
	if err := s.client.Do(ctx, http.MethodGet, catalogPath, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// BySlug fetches a single creator's public profile. The path shape is
// not on the public-prefix list, so the request is marked public
// explicitly; visitors without a session can browse profiles.
func (s *Service) BySlug(ctx context.Context, slug string) (*Creator, error) {
	if slug == "" {
		return nil, errors.New("[Service.BySlug] slug is required")
	}

	path := fmt.Sprintf("/creators/%s/", url.PathEscape(slug))
	var envelope creatorEnvelope
	if err := s.client.Do(ctx, http.MethodGet, path, nil, &envelope, client.Public()); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// UpdateProfile updates the caller's own creator profile.
func (s *Service) UpdateProfile(ctx context.Context, req UpdateRequest) (*Creator, error) {
	var envelope creatorEnvelope
	if err := s.client.Do(ctx, http.MethodPut, myProfilePath, req, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}
