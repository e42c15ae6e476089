// Package masterdata maintains the project and material registers every
// ledger movement references.
package masterdata

import "time"

// Project represents a construction site with its own material allocation.
type Project struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Material represents a stock item together with its global counters.
type Material struct {
	ID          int64   `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category,omitempty"`
	OrderedQty  float64 `json:"orderedQty"`
	ReceivedQty float64 `json:"receivedQty"`
	UtilizedQty float64 `json:"utilizedQty"`
	BalanceQty  float64 `json:"balanceQty"`
}

// ListFilters narrows and pages list queries.
type ListFilters struct {
	Search string
	Page   int
	Limit  int
}
