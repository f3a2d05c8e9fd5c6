package models

import (
	"context"
	"time"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/schema"
)

// PayrollStatus статус расчета зарплаты
type PayrollStatus string

const (
	PayrollPending  PayrollStatus = "pending"
	PayrollApproved PayrollStatus = "approved"
	PayrollPaid     PayrollStatus = "paid"
)

// PayrollRun расчет зарплаты одного сотрудника за период.
type PayrollRun struct {
	record
}

func NewPayrollRun(e *crdt.Entity) *PayrollRun {
	return &PayrollRun{record{entity: e, table: schema.TablePayrollRuns}}
}

// PayrollRunInput поля нового расчета. Period в формате YYYY-MM.
type PayrollRunInput struct {
	Period     string
	EmployeeID string
	Gross      float64
	Net        float64
}

func (in PayrollRunInput) Fields() map[string]crdt.Value {
	return map[string]crdt.Value{
		"period":      crdt.String(in.Period),
		"employee_id": crdt.String(in.EmployeeID),
		"gross":       crdt.Number(in.Gross),
		"net":         crdt.Number(in.Net),
	}
}

func CreatePayrollRun(ctx context.Context, w Writer, in PayrollRunInput) (*PayrollRun, error) {
	e, err := w.Create(ctx, schema.TablePayrollRuns, in.Fields())
	if err != nil {
		return nil, err
	}
	return NewPayrollRun(e), nil
}

func (p *PayrollRun) Period() string { return p.str("period") }
func (p *PayrollRun) EmployeeID() string { return p.str("employee_id") }
func (p *PayrollRun) Gross() float64 { return p.num("gross") }
func (p *PayrollRun) Net() float64 { return p.num("net") }
func (p *PayrollRun) Status() PayrollStatus { return PayrollStatus(p.str("status")) }
func (p *PayrollRun) PaidAt() (time.Time, bool) { return p.timeOf("paid_at") }

func (p *PayrollRun) Approve(ctx context.Context, w Writer) error {
	return p.set(ctx, w, "status", crdt.String(string(PayrollApproved)))
}

func (p *PayrollRun) MarkPaid(ctx context.Context, w Writer, at time.Time) error {
	if err := p.set(ctx, w, "paid_at", timeValue(at)); err != nil {
		return err
	}
	return p.set(ctx, w, "status", crdt.String(string(PayrollPaid)))
}
