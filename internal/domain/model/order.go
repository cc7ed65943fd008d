package model

import (
	"github.com/target/seclab-api/internal/domain/access"
)

// Order is a purchase owned by a user and tagged with the user's sales region.
type Order struct {
	ID     int64   `json:"id"     db:"id"`
	UserID int64   `json:"userId" db:"user_id"`
	Item   string  `json:"item"   db:"item"`
	Region string  `json:"region" db:"region"`
	Total  float64 `json:"total"  db:"total"`
}

// Resource returns the access-control view of the order.
func (o *Order) Resource() access.Resource {
	return access.Resource{Kind: access.KindOrder, ID: o.ID, OwnerID: o.UserID, Region: o.Region}
}

// Transaction is a bank ledger entry owned by a user.
type Transaction struct {
	ID          int64   `json:"id"          db:"id"`
	UserID      int64   `json:"-"           db:"user_id"`
	Amount      float64 `json:"amount"      db:"amount"`
	Description string  `json:"description" db:"description"`
}

// Resource returns the access-control view of the transaction.
func (t *Transaction) Resource() access.Resource {
	return access.Resource{Kind: access.KindTransaction, ID: t.ID, OwnerID: t.UserID}
}

// TransactionListOptions filters a user's transactions.
type TransactionListOptions struct {
	UserID int64
	// Q matches description via substring (case-insensitive).
	Q     string
	Limit int
}
