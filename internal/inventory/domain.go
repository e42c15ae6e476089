package inventory

import (
	"errors"
	"time"
)

// InwardType distinguishes fresh supply from material returned by another project.
type InwardType string

const (
	// InwardTypeSupply marks a regular supplier delivery.
	InwardTypeSupply InwardType = "SUPPLY"
	// InwardTypeReturn marks material coming back from a transfer.
	InwardTypeReturn InwardType = "RETURN"
)

// OutwardStatus is the lifecycle of a daily outward register.
type OutwardStatus string

const (
	// OutwardStatusOpen accepts further issue lines.
	OutwardStatusOpen OutwardStatus = "OPEN"
	// OutwardStatusClosed rejects any further edits.
	OutwardStatusClosed OutwardStatus = "CLOSED"
)

// Project identifies a site the ledger books movements against.
type Project struct {
	ID   int64
	Code string
	Name string
}

// Material carries the global aggregate counters maintained by every journal write.
type Material struct {
	ID          int64
	Code        string
	Name        string
	Unit        string
	Category    string
	OrderedQty  float64
	ReceivedQty float64
	UtilizedQty float64
	BalanceQty  float64
}

// SyncBalance recomputes the derived balance, clamped at zero.
func (m *Material) SyncBalance() {
	m.BalanceQty = m.ReceivedQty - m.UtilizedQty
	if m.BalanceQty < 0 {
		m.BalanceQty = 0
	}
}

// InwardRecord is an append-only receipt document.
type InwardRecord struct {
	ID           int64
	Code         string
	ProjectID    int64
	Type         InwardType
	SupplierName string
	InvoiceNo    string
	InvoiceDate  *time.Time
	DeliveryDate *time.Time
	VehicleNo    string
	Remarks      string
	EntryDate    time.Time
	Lines        []InwardLine
}

// InwardLine books ordered and received quantity for one material.
type InwardLine struct {
	ID          int64
	RecordID    int64
	MaterialID  int64
	OrderedQty  float64
	ReceivedQty float64
}

// OutwardRegister is the mutable per-(project, date) issue container.
type OutwardRegister struct {
	ID        int64
	Code      string
	ProjectID int64
	Date      time.Time
	IssueTo   string
	Status    OutwardStatus
	CloseDate *time.Time
	Lines     []OutwardLine
}

// OutwardLine holds the accumulated issue quantity of one material. At most
// one line per material exists per register.
type OutwardLine struct {
	ID         int64
	RegisterID int64
	MaterialID int64
	IssueQty   float64
}

// TransferRecord documents a compound movement between two project/site locations.
type TransferRecord struct {
	ID            int64
	Code          string
	FromProjectID int64
	ToProjectID   int64
	FromSite      string
	ToSite        string
	Remarks       string
	TransferDate  time.Time
	Lines         []TransferLine
}

// TransferLine moves one material's quantity between the two locations.
type TransferLine struct {
	ID         int64
	RecordID   int64
	MaterialID int64
	Qty        float64
}

// Codes is the non-reserving preview of the next daily document codes.
type Codes struct {
	InwardCode   string `json:"inwardCode"`
	OutwardCode  string `json:"outwardCode"`
	TransferCode string `json:"transferCode"`
}

var (
	// ErrNotFound indicates a missing project, material or register.
	ErrNotFound = errors.New("inventory: not found")
	// ErrBadRequest indicates an empty or invalid request.
	ErrBadRequest = errors.New("inventory: bad request")
	// ErrNotAllocated indicates the material has no BOM line for the project.
	ErrNotAllocated = errors.New("inventory: material not allocated to project")
	// ErrAllocationExceeded indicates a movement would break the BOM ceiling.
	ErrAllocationExceeded = errors.New("inventory: allocation exceeded")
	// ErrInsufficientBalance indicates project or global stock cannot cover an issue.
	ErrInsufficientBalance = errors.New("inventory: insufficient balance")
	// ErrClosedRegister indicates an edit against a CLOSED outward register.
	ErrClosedRegister = errors.New("inventory: register closed")
	// ErrConflict indicates a concurrent write collision, e.g. a duplicate code.
	ErrConflict = errors.New("inventory: conflict")
)
