package domain

import "errors"

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// Credit ledger errors
var (
	ErrCreditLineNotFound   = errors.New("credit line not found")
	ErrInsufficientCredit   = errors.New("insufficient credit")
	ErrStaleVersion         = errors.New("stale credit line version")
	ErrCreditLineContention = errors.New("credit line contention, retry limit reached")
	ErrCreditLineInactive   = errors.New("credit line is deactivated")
	ErrLimitBelowUtilized   = errors.New("new credit limit is below the utilized amount")
	ErrHierarchyTooDeep     = errors.New("credit line hierarchy exceeds two levels")
)

// Voucher errors
var (
	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrVoucherExpired     = errors.New("voucher expired")
	ErrVoucherAlreadyUsed = errors.New("voucher already used")
)

// Transaction errors
var (
	ErrTransactionNotFound            = errors.New("transaction not found")
	ErrTransactionNotAuthorized       = errors.New("transaction is not in authorized state")
	ErrAlreadySettled                 = errors.New("transaction already settled")
	ErrSettlementExceedsAuthorization = errors.New("settled amount exceeds authorized amount")
	ErrIdempotencyKeyConflict         = errors.New("idempotency key reused for a different request")
)

// Loan errors
var (
	ErrLoanNotFound       = errors.New("loan not found")
	ErrLoanAlreadyDerived = errors.New("loan already derived for transaction")
	ErrLoanNotActive      = errors.New("loan is not active")
	ErrRepaymentTooLarge  = errors.New("repayment exceeds outstanding balance")
	ErrLoanNotOverdue     = errors.New("loan is not overdue")
	ErrLoanContention     = errors.New("loan balance contention, retry limit reached")
)
