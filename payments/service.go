// Package payments sends mobile-money tips into creator wallets.
package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tipzed/go-tipzed/client"
	"github.com/tipzed/go-tipzed/momo"
)

// ErrNoProvider is returned when no provider was given and none could
// be detected from the patron's phone number. This mirrors the
// detector's negative result; it is the caller's validation problem,
// not a transport failure.
var ErrNoProvider = errors.New("no mobile-money provider detected")

const idempotencyHeader = "X-Idempotency-Key"

// TipRequest is a mobile-money deposit into a creator's wallet.
// Provider may be left empty, in which case it is detected from
// PatronPhone.
type TipRequest struct {
	Amount        float64 `json:"amount"`
	Provider      string  `json:"provider"`
	PatronPhone   string  `json:"patronPhone"`
	PatronEmail   string  `json:"patronEmail"`
	PatronMessage string  `json:"patronMessage,omitempty"`
}

// TipResult is the backend's acknowledgement of an initiated deposit.
// The deposit itself completes asynchronously on the provider side.
type TipResult struct {
	DepositID string `json:"depositId"`
	Status    string `json:"status"`
}

type tipEnvelope struct {
	Status string    `json:"status"`
	Data   TipResult `json:"data"`
}

// Service is the payments surface of the SDK.
type Service struct {
	client *client.Client
}

// NewService creates a payments service.
func NewService(c *client.Client) (*Service, error) {
	if c == nil {
		return nil, errors.New("[payments.NewService] client is required")
	}
	return &Service{client: c}, nil
}

// SendTip initiates a mobile-money deposit into walletID. Each call
// carries a fresh idempotency key; the post-refresh retry reuses the
// same key, so a patron is never charged twice for one tip.
func (s *Service) SendTip(ctx context.Context, walletID int64, req TipRequest) (*TipResult, error) {
	if walletID <= 0 {
		return nil, errors.New("[Service.SendTip] walletID is required")
	}
	if req.Amount <= 0 {
		return nil, errors.New("[Service.SendTip] amount must be positive")
	}
	if req.Provider == "" {
		provider, ok := momo.Detect(req.PatronPhone)
		if !ok {
			return nil, errors.Wrapf(ErrNoProvider, "phone %q", req.PatronPhone)
		}
		req.Provider = provider.ID
	} else if _, ok := momo.ByID(req.Provider); !ok {
		return nil, errors.Errorf("[Service.SendTip] unknown provider %q", req.Provider)
	}

	path := fmt.Sprintf("/payments/deposits/%d/", walletID)
	var envelope tipEnvelope
	err := s.client.Do(ctx, http.MethodPost, path, req, &envelope,
		client.WithHeader(idempotencyHeader, uuid.NewString()))
	if err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}
