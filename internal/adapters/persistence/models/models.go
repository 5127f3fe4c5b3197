package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Auth & Party Tables
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'DRIVER'" json:"role"`
	SubjectID uint           `gorm:"index" json:"subject_id"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	SubjectID uint      `json:"subject_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		SubjectID: u.SubjectID,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// Bank represents a funding bank
type Bank struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	AccountNumber string         `gorm:"size:50" json:"account_number"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Bank) TableName() string {
	return "banks"
}

// Agency represents a fleet agency whose drivers share a credit pool
type Agency struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Name                 string         `gorm:"size:100;not null" json:"name"`
	FleetSize            int            `gorm:"default:1" json:"fleet_size"`
	AverageRepaymentDays float64        `gorm:"type:decimal(6,2);default:30" json:"average_repayment_days"`
	MonthlyFuelVolume    float64        `gorm:"type:decimal(15,2);default:0" json:"monthly_fuel_volume"`
	RiskScore            float64        `gorm:"type:decimal(5,2);default:0" json:"risk_score"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Agency) TableName() string {
	return "agencies"
}

// Driver represents a fuel-drawing driver
type Driver struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	FullName              string         `gorm:"size:100;not null" json:"full_name"`
	PhoneNumber           string         `gorm:"size:20;uniqueIndex" json:"phone_number"`
	AgencyID              *uint          `gorm:"index" json:"agency_id"`
	PreferredBankID       *uint          `json:"preferred_bank_id"`
	FuelTankCapacityL     float64        `gorm:"type:decimal(8,2);default:60" json:"fuel_tank_capacity_liters"`
	FuelConsumptionLPerKm float64        `gorm:"type:decimal(6,4);default:0.12" json:"fuel_consumption_l_per_km"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Agency *Agency `gorm:"foreignKey:AgencyID" json:"agency,omitempty"`
	Bank   *Bank   `gorm:"foreignKey:PreferredBankID" json:"bank,omitempty"`
}

func (Driver) TableName() string {
	return "drivers"
}

// FuelStation represents a station that redeems vouchers
type FuelStation struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:100;not null" json:"name"`
	MerchantAccount string         `gorm:"size:50" json:"merchant_account"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (FuelStation) TableName() string {
	return "fuel_stations"
}

// ============================================================
// Credit Engine Tables
// ============================================================

// Credit line owner types
const (
	LineOwnerDriver = "DRIVER"
	LineOwnerAgency = "AGENCY"
)

// CreditLine represents one drawable credit pool. The (utilized, version)
// pair is only ever mutated through the compare-and-swap update in the
// repository; every writer must supply the version it read.
type CreditLine struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerType      string    `gorm:"size:10;not null;index" json:"owner_type"`
	DriverID       *uint     `gorm:"index" json:"driver_id"`
	AgencyID       *uint     `gorm:"index" json:"agency_id"`
	BankID         uint      `gorm:"not null;index" json:"bank_id"`
	ParentLineID   *uint     `gorm:"index" json:"parent_line_id"`
	CreditLimit    float64   `gorm:"type:decimal(15,2);not null" json:"credit_limit"`
	UtilizedAmount float64   `gorm:"type:decimal(15,2);not null;default:0" json:"utilized_amount"`
	Version        uint64    `gorm:"not null;default:0" json:"version"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Bank   *Bank       `gorm:"foreignKey:BankID" json:"bank,omitempty"`
	Parent *CreditLine `gorm:"foreignKey:ParentLineID" json:"-"`
}

func (CreditLine) TableName() string {
	return "credit_lines"
}

// Available returns this line's own headroom, ignoring any parent pool.
func (cl *CreditLine) Available() float64 {
	remaining := cl.CreditLimit - cl.UtilizedAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreditLineResponse DTO
type CreditLineResponse struct {
	ID             uint    `json:"id"`
	OwnerType      string  `json:"owner_type"`
	DriverID       *uint   `json:"driver_id,omitempty"`
	AgencyID       *uint   `json:"agency_id,omitempty"`
	BankID         uint    `json:"bank_id"`
	ParentLineID   *uint   `json:"parent_line_id,omitempty"`
	CreditLimit    float64 `json:"credit_limit"`
	UtilizedAmount float64 `json:"utilized_amount"`
	Version        uint64  `json:"version"`
	IsActive       bool    `json:"is_active"`
}

func (cl *CreditLine) ToResponse() *CreditLineResponse {
	return &CreditLineResponse{
		ID:             cl.ID,
		OwnerType:      cl.OwnerType,
		DriverID:       cl.DriverID,
		AgencyID:       cl.AgencyID,
		BankID:         cl.BankID,
		ParentLineID:   cl.ParentLineID,
		CreditLimit:    cl.CreditLimit,
		UtilizedAmount: cl.UtilizedAmount,
		Version:        cl.Version,
		IsActive:       cl.IsActive,
	}
}

// Voucher statuses
const (
	VoucherStatusIssued   = "ISSUED"
	VoucherStatusRedeemed = "REDEEMED"
	VoucherStatusExpired  = "EXPIRED"
)

// QrVoucher represents a short-lived, single-use authorization token.
// Expiry is evaluated lazily at redemption time; the cron sweep only
// tidies rows that were never scanned.
type QrVoucher struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Code             string     `gorm:"size:64;uniqueIndex;not null" json:"code"`
	DriverID         uint       `gorm:"not null;index" json:"driver_id"`
	StationID        uint       `gorm:"not null;index" json:"station_id"`
	CreditLineID     uint       `gorm:"not null;index" json:"credit_line_id"`
	AuthorizedAmount float64    `gorm:"type:decimal(15,2);not null" json:"authorized_amount"`
	Status           string     `gorm:"size:20;not null;default:'ISSUED';index" json:"status"`
	IssuedAt         time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt        time.Time  `gorm:"not null;index" json:"expires_at"`
	RedeemedAt       *time.Time `json:"redeemed_at"`
	TransactionID    *uint      `json:"transaction_id"`

	// Relations
	Driver  *Driver      `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	Station *FuelStation `gorm:"foreignKey:StationID" json:"station,omitempty"`
}

func (QrVoucher) TableName() string {
	return "qr_vouchers"
}

func (v *QrVoucher) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// QrVoucherResponse DTO
type QrVoucherResponse struct {
	Code             string     `json:"code"`
	DriverID         uint       `json:"driver_id"`
	StationID        uint       `json:"station_id"`
	AuthorizedAmount float64    `json:"authorized_amount"`
	Status           string     `json:"status"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
}

func (v *QrVoucher) ToResponse() *QrVoucherResponse {
	return &QrVoucherResponse{
		Code:             v.Code,
		DriverID:         v.DriverID,
		StationID:        v.StationID,
		AuthorizedAmount: v.AuthorizedAmount,
		Status:           v.Status,
		IssuedAt:         v.IssuedAt,
		ExpiresAt:        v.ExpiresAt,
		RedeemedAt:       v.RedeemedAt,
	}
}

// Transaction statuses
const (
	TxStatusAuthorized = "AUTHORIZED"
	TxStatusSettled    = "SETTLED"
	TxStatusExpired    = "EXPIRED"
	TxStatusCancelled  = "CANCELLED"
)

// Transaction represents one hold/capture cycle against a credit line
type Transaction struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Reference        string     `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	IdempotencyKey   string     `gorm:"size:128;uniqueIndex;not null" json:"idempotency_key"`
	CreditLineID     uint       `gorm:"not null;index" json:"credit_line_id"`
	VoucherID        uint       `gorm:"not null;index" json:"voucher_id"`
	DriverID         uint       `gorm:"not null;index" json:"driver_id"`
	AgencyID         *uint      `gorm:"index" json:"agency_id"`
	StationID        uint       `gorm:"not null;index" json:"station_id"`
	AuthorizedAmount float64    `gorm:"type:decimal(15,2);not null" json:"authorized_amount"`
	SettledAmount    *float64   `gorm:"type:decimal(15,2)" json:"settled_amount"`
	Status           string     `gorm:"size:20;not null;default:'AUTHORIZED';index" json:"status"`
	AuthorizedAt     time.Time  `gorm:"not null" json:"authorized_at"`
	SettledAt        *time.Time `json:"settled_at"`
	ClosedAt         *time.Time `json:"closed_at"`

	// Relations
	CreditLine *CreditLine  `gorm:"foreignKey:CreditLineID" json:"credit_line,omitempty"`
	Voucher    *QrVoucher   `gorm:"foreignKey:VoucherID" json:"voucher,omitempty"`
	Station    *FuelStation `gorm:"foreignKey:StationID" json:"station,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// IsTerminal reports whether the transaction is in an immutable state
func (t *Transaction) IsTerminal() bool {
	return t.Status != TxStatusAuthorized
}

// TransactionResponse DTO
type TransactionResponse struct {
	ID               uint       `json:"id"`
	Reference        string     `json:"reference"`
	CreditLineID     uint       `json:"credit_line_id"`
	DriverID         uint       `json:"driver_id"`
	StationID        uint       `json:"station_id"`
	AuthorizedAmount float64    `json:"authorized_amount"`
	SettledAmount    *float64   `json:"settled_amount,omitempty"`
	Status           string     `json:"status"`
	AuthorizedAt     time.Time  `json:"authorized_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

func (t *Transaction) ToResponse() *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID,
		Reference:        t.Reference,
		CreditLineID:     t.CreditLineID,
		DriverID:         t.DriverID,
		StationID:        t.StationID,
		AuthorizedAmount: t.AuthorizedAmount,
		SettledAmount:    t.SettledAmount,
		Status:           t.Status,
		AuthorizedAt:     t.AuthorizedAt,
		SettledAt:        t.SettledAt,
	}
}

// ============================================================
// Idempotency & Settlement Tables
// ============================================================

// Idempotency operation kinds
const (
	OpKindIssueVoucher = "ISSUE_VOUCHER"
	OpKindAuthorize    = "AUTHORIZE"
	OpKindSettle       = "SETTLE"
)

// IdempotencyRecord maps a client-supplied key to the stored outcome of
// the operation it guarded. A key is scoped by operation kind; reusing
// it with a different request fingerprint is a client error.
type IdempotencyRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	IdemKey       string    `gorm:"column:idem_key;size:128;not null;uniqueIndex:idx_idem_key_kind" json:"key"`
	OperationKind string    `gorm:"size:30;not null;uniqueIndex:idx_idem_key_kind" json:"operation_kind"`
	Fingerprint   string    `gorm:"size:128;not null" json:"-"`
	Completed     bool      `gorm:"default:false" json:"completed"`
	ResultCode    int       `json:"result_code"`
	ResultBody    string    `gorm:"type:text" json:"-"`
	ExpiresAt     time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}

// Settlement intent statuses
const (
	IntentStatusPending  = "PENDING"
	IntentStatusExecuted = "EXECUTED"
)

// SettlementIntent is the record handed to the external payment rail:
// transfer Amount from the bank account to the station merchant account.
// Execution and webhook reconciliation happen outside this engine.
type SettlementIntent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TransactionID   uint      `gorm:"not null;uniqueIndex" json:"transaction_id"`
	BankAccount     string    `gorm:"size:50" json:"bank_account"`
	MerchantAccount string    `gorm:"size:50" json:"merchant_account"`
	Amount          float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status          string    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SettlementIntent) TableName() string {
	return "settlement_intents"
}

// ============================================================
// Loan Tables
// ============================================================

// Loan statuses
const (
	LoanStatusActive    = "ACTIVE"
	LoanStatusPaidOff   = "PAID_OFF"
	LoanStatusOverdue   = "OVERDUE"
	LoanStatusDefaulted = "DEFAULTED"
)

// Loan is derived 1:1 from a settled transaction
type Loan struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	TransactionID      uint       `gorm:"not null;uniqueIndex" json:"transaction_id"`
	CreditLineID       uint       `gorm:"not null;index" json:"credit_line_id"`
	DriverID           uint       `gorm:"not null;index" json:"driver_id"`
	AgencyID           *uint      `gorm:"index" json:"agency_id"`
	Principal          float64    `gorm:"type:decimal(15,2);not null" json:"principal"`
	OutstandingBalance float64    `gorm:"type:decimal(15,2);not null" json:"outstanding_balance"`
	Status             string     `gorm:"size:20;not null;default:'ACTIVE';index" json:"status"`
	DueAt              time.Time  `gorm:"not null;index" json:"due_at"`
	PaidOffAt          *time.Time `json:"paid_off_at"`
	DefaultedAt        *time.Time `json:"defaulted_at"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Transaction *Transaction    `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
	Repayments  []LoanRepayment `gorm:"foreignKey:LoanID" json:"repayments,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsOverdue reports whether the loan should be aged into OVERDUE at
// the given instant. Evaluated lazily on read/write, never by a timer.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusActive && l.OutstandingBalance > 0 && now.After(l.DueAt)
}

// LoanResponse DTO
type LoanResponse struct {
	ID                 uint       `json:"id"`
	TransactionID      uint       `json:"transaction_id"`
	DriverID           uint       `json:"driver_id"`
	Principal          float64    `json:"principal"`
	OutstandingBalance float64    `json:"outstanding_balance"`
	Status             string     `json:"status"`
	DueAt              time.Time  `json:"due_at"`
	PaidOffAt          *time.Time `json:"paid_off_at,omitempty"`
}

func (l *Loan) ToResponse() *LoanResponse {
	return &LoanResponse{
		ID:                 l.ID,
		TransactionID:      l.TransactionID,
		DriverID:           l.DriverID,
		Principal:          l.Principal,
		OutstandingBalance: l.OutstandingBalance,
		Status:             l.Status,
		DueAt:              l.DueAt,
		PaidOffAt:          l.PaidOffAt,
	}
}

// Repayment sources
const (
	RepaySourceBankAuto = "BANK_AUTO"
	RepaySourceManual   = "MANUAL"
	RepaySourceGateway  = "PAYMENT_GATEWAY"
)

// LoanRepayment is an append-only record of a payment applied to a loan
type LoanRepayment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LoanID    uint      `gorm:"not null;index" json:"loan_id"`
	Amount    float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Source    string    `gorm:"size:30;not null" json:"source"`
	Reference string    `gorm:"size:100" json:"reference"`
	PostedAt  time.Time `gorm:"not null" json:"posted_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LoanRepayment) TableName() string {
	return "loan_repayments"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Auth & parties
		&User{},
		&RefreshToken{},
		&Bank{},
		&Agency{},
		&Driver{},
		&FuelStation{},
		// Credit engine
		&CreditLine{},
		&QrVoucher{},
		&Transaction{},
		&IdempotencyRecord{},
		&SettlementIntent{},
		// Loans
		&Loan{},
		&LoanRepayment{},
	)
}
