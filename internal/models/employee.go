package models

import (
	"context"
	"time"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/schema"
)

// Employee сотрудник.
type Employee struct {
	record
}

func NewEmployee(e *crdt.Entity) *Employee {
	return &Employee{record{entity: e, table: schema.TableEmployees}}
}

// EmployeeInput поля нового сотрудника
type EmployeeInput struct {
	HiredAt    time.Time
	Name       string
	Email      string
	Department string
	Salary     float64
}

func (in EmployeeInput) Fields() map[string]crdt.Value {
	return map[string]crdt.Value{
		"name":       crdt.String(in.Name),
		"email":      crdt.String(in.Email),
		"department": crdt.String(in.Department),
		"salary":     crdt.Number(in.Salary),
		"hired_at":   timeValue(in.HiredAt),
	}
}

func CreateEmployee(ctx context.Context, w Writer, in EmployeeInput) (*Employee, error) {
	e, err := w.Create(ctx, schema.TableEmployees, in.Fields())
	if err != nil {
		return nil, err
	}
	return NewEmployee(e), nil
}

func (e *Employee) Name() string { return e.str("name") }
func (e *Employee) Email() string { return e.str("email") }
func (e *Employee) Department() string { return e.str("department") }
func (e *Employee) Salary() float64 { return e.num("salary") }
func (e *Employee) HiredAt() (time.Time, bool) { return e.timeOf("hired_at") }
func (e *Employee) Active() bool { return e.boolean("active") }

func (e *Employee) SetSalary(ctx context.Context, w Writer, salary float64) error {
	return e.set(ctx, w, "salary", crdt.Number(salary))
}

func (e *Employee) SetActive(ctx context.Context, w Writer, active bool) error {
	return e.set(ctx, w, "active", crdt.Bool(active))
}

func (e *Employee) SetDepartment(ctx context.Context, w Writer, department string) error {
	return e.set(ctx, w, "department", crdt.String(department))
}
