package models

import (
	"context"
	"time"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/schema"
)

// InvoiceStatus статус счета
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice счет клиенту.
type Invoice struct {
	record
}

// NewInvoice wraps an entity of the invoices table.
func NewInvoice(e *crdt.Entity) *Invoice {
	return &Invoice{record{entity: e, table: schema.TableInvoices}}
}

// InvoiceInput поля нового счета
type InvoiceInput struct {
	DueDate    time.Time
	Number     string
	CustomerID string
	Currency   string
	Amount     float64
}

// Fields converts the input into field values. Empty currency keeps the
// table default.
func (in InvoiceInput) Fields() map[string]crdt.Value {
	fields := map[string]crdt.Value{
		"number":      crdt.String(in.Number),
		"customer_id": crdt.String(in.CustomerID),
		"amount":      crdt.Number(in.Amount),
		"due_date":    timeValue(in.DueDate),
	}
	if in.Currency != "" {
		fields["currency"] = crdt.String(in.Currency)
	}
	return fields
}

// CreateInvoice creates and persists an invoice.
func CreateInvoice(ctx context.Context, w Writer, in InvoiceInput) (*Invoice, error) {
	e, err := w.Create(ctx, schema.TableInvoices, in.Fields())
	if err != nil {
		return nil, err
	}
	return NewInvoice(e), nil
}

func (i *Invoice) Number() string { return i.str("number") }
func (i *Invoice) CustomerID() string { return i.str("customer_id") }
func (i *Invoice) Amount() float64 { return i.num("amount") }
func (i *Invoice) Currency() string { return i.str("currency") }
func (i *Invoice) Status() InvoiceStatus { return InvoiceStatus(i.str("status")) }
func (i *Invoice) DueDate() (time.Time, bool) { return i.timeOf("due_date") }
func (i *Invoice) Note() string { return i.str("note") }
func (i *Invoice) PaidAt() (time.Time, bool) { return i.timeOf("paid_at") }

func (i *Invoice) SetStatus(ctx context.Context, w Writer, s InvoiceStatus) error {
	return i.set(ctx, w, "status", crdt.String(string(s)))
}

func (i *Invoice) SetAmount(ctx context.Context, w Writer, amount float64) error {
	return i.set(ctx, w, "amount", crdt.Number(amount))
}

func (i *Invoice) SetNote(ctx context.Context, w Writer, note string) error {
	return i.set(ctx, w, "note", crdt.String(note))
}

// MarkPaid sets paid_at and then the status. The two writes are independent
// registers and may be observed separately by peers.
func (i *Invoice) MarkPaid(ctx context.Context, w Writer, at time.Time) error {
	if err := i.set(ctx, w, "paid_at", timeValue(at)); err != nil {
		return err
	}
	return i.SetStatus(ctx, w, InvoicePaid)
}
