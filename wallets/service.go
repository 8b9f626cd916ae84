// Package wallets reads the caller's wallet summary and transaction
// history.
package wallets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/tipzed/go-tipzed/client"
)

const (
	walletPath       = "/wallets/me"
	transactionsPath = "/wallets/transactions"
)

// Transaction statuses as reported by the backend.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// Supporter identifies who sent a tip.
type Supporter struct {
	Name string `json:"name"`
}

// Transaction is one wallet movement. A nil Supporter means the tip
// was anonymous.
type Transaction struct {
	ID        string     `json:"id"`
	Date      time.Time  `json:"date"`
	Amount    float64    `json:"amount"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Supporter *Supporter `json:"supporter"`
}

// Pagination describes a page of results.
type Pagination struct {
	Total int `json:"total"`
	Pages int `json:"pages"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Wallet is the dashboard summary: balances plus the most recent
// transactions.
type Wallet struct {
	Currency          string        `json:"currency"`
	Balance           float64       `json:"balance"`
	TotalEarnings     float64       `json:"total_earnings"`
	TotalTransactions int           `json:"total_transactions"`
	Transactions      []Transaction `json:"transactions"`
	Pagination        Pagination    `json:"pagination"`
}

// Page selects a result page. Zero values fall back to the backend's
// defaults.
type Page struct {
	Page  int
	Limit int
}

func (p Page) query() string {
	if p.Page <= 0 && p.Limit <= 0 {
		return ""
	}
	page, limit := p.Page, p.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	return fmt.Sprintf("?page=%d&limit=%d", page, limit)
}

type walletEnvelope struct {
	Status string `json:"status"`
	Data   Wallet `json:"data"`
}

type transactionsEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Transactions []Transaction `json:"transactions"`
		Pagination   Pagination    `json:"pagination"`
	} `json:"data"`
}

// Service is the wallet surface of the SDK.
type Service struct {
	client *client.Client
}

// NewService creates a wallets service.
func NewService(c *client.Client) (*Service, error) {
	if c == nil {
		return nil, errors.New("[wallets.NewService] client is required")
	}
	return &Service{client: c}, nil
}

// Me fetches the caller's wallet summary.
func (s *Service) Me(ctx context.Context, page Page) (*Wallet, error) {
	var envelope walletEnvelope
	if err := s.client.Do(ctx, http.MethodGet, walletPath+page.query(), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// Transactions fetches a page of the caller's transaction history.
func (s *Service) Transactions(ctx context.Context, page Page) ([]Transaction, Pagination, error) {
	var envelope transactionsEnvelope
	if err := s.client.Do(ctx, http.MethodGet, transactionsPath+page.query(), nil, &envelope); err != nil {
		return nil, Pagination{}, err
	}
	return envelope.Data.Transactions, envelope.Data.Pagination, nil
}
