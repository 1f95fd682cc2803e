package templates

import (
	"context"
	"fmt"
	"strings"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/utils"
)

// PaymentReceiptHandler e-mails receipts for completed payments and refund notices
type PaymentReceiptHandler struct {
	customerRepo repository.CustomerRepository
	mailRepo     repository.MailRepository
	logger       logger.Logger
}

// NewPaymentReceiptHandler creates a new payment receipt handler
func NewPaymentReceiptHandler(customerRepo repository.CustomerRepository, mailRepo repository.MailRepository, logger logger.Logger) *PaymentReceiptHandler {
	return &PaymentReceiptHandler{
		customerRepo: customerRepo,
		mailRepo:     mailRepo,
		logger:       logger,
	}
}

// CanHandle determines if this handler reacts to the event type
func (h *PaymentReceiptHandler) CanHandle(eventType entity.EventType) bool {
	return eventType == entity.EventPaymentCompleted || eventType == entity.EventPaymentRefunded
}

// Handle sends the receipt to the customer's e-mail address
func (h *PaymentReceiptHandler) Handle(ctx context.Context, event entity.Event) error {
	payment := event.Payment
	if payment == nil {
		return fmt.Errorf("event %s carries no payment", event.Type)
	}

	customer, err := h.customerRepo.FindByID(ctx, payment.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}
	if customer.Email == "" {
		h.logger.Warn("Customer has no e-mail address, skipping receipt",
			"customerId", customer.ID,
			"transactionId", payment.TransactionID)
		return nil
	}

	subject, body := renderReceipt(event, customer)
	if err := h.mailRepo.Send(ctx, customer.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	h.logger.Info("Receipt sent",
		"transactionId", payment.TransactionID,
		"receipt", payment.ReceiptNumber)
	return nil
}

func renderReceipt(event entity.Event, customer *entity.Customer) (string, string) {
	p := event.Payment
	var sb strings.Builder

	fmt.Fprintf(&sb, "<p>Dear %s,</p>", customer.Name)
	if p.IsRefund() {
		fmt.Fprintf(&sb, "<p>A refund of <b>%s %s</b> for booking <b>%s</b> has been processed.</p>",
			p.Currency, utils.FormatMoney(p.Amount.Abs()), p.BookingReference)
		if p.RefundReason != "" {
			fmt.Fprintf(&sb, "<p>Reason: %s</p>", p.RefundReason)
		}
	} else {
		fmt.Fprintf(&sb, "<p>We received your payment of <b>%s %s</b> for booking <b>%s</b>.</p>",
			p.Currency, utils.FormatMoney(p.Amount), p.BookingReference)
	}

	sb.WriteString("<table>")
	fmt.Fprintf(&sb, "<tr><td>Receipt</td><td>%s</td></tr>", p.ReceiptNumber)
	fmt.Fprintf(&sb, "<tr><td>Transaction</td><td>%s</td></tr>", p.TransactionID)
	fmt.Fprintf(&sb, "<tr><td>Method</td><td>%s</td></tr>", strings.ReplaceAll(string(p.Method), "_", " "))
	if b := event.Booking; b != nil {
		fmt.Fprintf(&sb, "<tr><td>Total</td><td>%s</td></tr>", utils.FormatMoney(b.TotalAmount))
		fmt.Fprintf(&sb, "<tr><td>Paid to date</td><td>%s</td></tr>", utils.FormatMoney(b.AmountPaid))
		fmt.Fprintf(&sb, "<tr><td>Balance due</td><td>%s</td></tr>", utils.FormatMoney(b.AmountDue))
	}
	sb.WriteString("</table>")

	subject := fmt.Sprintf("Payment receipt %s", p.ReceiptNumber)
	if p.IsRefund() {
		subject = fmt.Sprintf("Refund notice %s", p.ReceiptNumber)
	}
	return subject, sb.String()
}
