package models

import (
	"context"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/schema"
)

// Customer клиент, которому выставляются счета.
type Customer struct {
	record
}

func NewCustomer(e *crdt.Entity) *Customer {
	return &Customer{record{entity: e, table: schema.TableCustomers}}
}

// CustomerInput поля нового клиента
type CustomerInput struct {
	Name    string
	Email   string
	TaxID   string
	Country string
}

func (in CustomerInput) Fields() map[string]crdt.Value {
	return map[string]crdt.Value{
		"name":    crdt.String(in.Name),
		"email":   crdt.String(in.Email),
		"tax_id":  crdt.String(in.TaxID),
		"country": crdt.String(in.Country),
	}
}

func CreateCustomer(ctx context.Context, w Writer, in CustomerInput) (*Customer, error) {
	e, err := w.Create(ctx, schema.TableCustomers, in.Fields())
	if err != nil {
		return nil, err
	}
	return NewCustomer(e), nil
}

func (c *Customer) Name() string { return c.str("name") }
func (c *Customer) Email() string { return c.str("email") }
func (c *Customer) TaxID() string { return c.str("tax_id") }
func (c *Customer) Country() string { return c.str("country") }

func (c *Customer) SetEmail(ctx context.Context, w Writer, email string) error {
	return c.set(ctx, w, "email", crdt.String(email))
}

func (c *Customer) SetName(ctx context.Context, w Writer, name string) error {
	return c.set(ctx, w, "name", crdt.String(name))
}
