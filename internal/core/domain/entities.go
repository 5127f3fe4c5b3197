package domain

import "time"

// Role represents an authenticated party's role in the system
type Role string

const (
	RoleDriver  Role = "DRIVER"
	RoleStation Role = "STATION"
	RoleAgency  Role = "AGENCY"
	RoleBank    Role = "BANK"
	RoleAdmin   Role = "ADMIN"
)

// User represents an authenticated account in the domain layer
type User struct {
	ID        uint
	Username  string
	Email     string
	Password  string // Hashed
	Role      Role
	SubjectID uint // driver/station/agency/bank record this account acts for
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshToken represents a refresh token in the domain
type RefreshToken struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// CreditScore is the opaque output of the risk scoring subsystem,
// consumed only when a credit line is created or resized.
type CreditScore struct {
	Score            float64
	RiskCategory     string
	RecommendedLimit float64
}

// SettlementEvent describes a settled transaction for downstream
// collaborators (bank transfer initiation, notifications).
type SettlementEvent struct {
	TransactionID uint
	DriverID      uint
	StationID     uint
	Amount        float64
	SettledAt     time.Time
}
