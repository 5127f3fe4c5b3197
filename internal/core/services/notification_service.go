package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"fuelink/internal/adapters/persistence/models"
)

// NotificationService pushes clearing events to an operator webhook.
// Delivery is fire-and-forget; the credit engine never waits on it and
// never fails a transaction because a notification bounced.
type NotificationService struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewNotificationService creates a new notification service
func NewNotificationService() *NotificationService {
	url := os.Getenv("NOTIFY_WEBHOOK_URL")
	return &NotificationService{
		webhookURL: url,
		enabled:    url != "",
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// IsEnabled checks if notification is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

type webhookEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// send posts the event asynchronously
func (s *NotificationService) send(event string, payload interface{}) {
	if !s.enabled {
		return
	}

	go func() {
		body, err := json.Marshal(webhookEvent{
			Event:     event,
			Timestamp: time.Now(),
			Payload:   payload,
		})
		if err != nil {
			log.Printf("⚠️ Failed to marshal %s notification: %v", event, err)
			return
		}

		resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("⚠️ Failed to deliver %s notification: %v", event, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Printf("⚠️ Webhook rejected %s notification: %s", event, resp.Status)
		}
	}()
}

// VoucherIssued announces a freshly issued voucher
func (s *NotificationService) VoucherIssued(voucher *models.QrVoucher) {
	s.send("voucher.issued", voucher.ToResponse())
}

// TransactionAuthorized announces a new hold on a credit line
func (s *NotificationService) TransactionAuthorized(tx *models.Transaction) {
	s.send("transaction.authorized", tx.ToResponse())
}

// TransactionSettled announces a captured transaction
func (s *NotificationService) TransactionSettled(tx *models.Transaction) {
	s.send("transaction.settled", tx.ToResponse())
}

// TransactionExpired announces a hold released by the expiry sweep
func (s *NotificationService) TransactionExpired(tx *models.Transaction) {
	s.send("transaction.expired", tx.ToResponse())
}

// LoanOverdue announces a loan that aged past its due date
func (s *NotificationService) LoanOverdue(loan *models.Loan) {
	s.send("loan.overdue", loan.ToResponse())
}

// LoanDefaulted announces a loan written off after the grace period
func (s *NotificationService) LoanDefaulted(loan *models.Loan) {
	s.send("loan.defaulted", loan.ToResponse())
}
