package schema

import "github.com/iudanet/ledgersync/internal/crdt"

// Имена таблиц бизнес-модулей
const (
	TableInvoices    = "invoices"
	TableCustomers   = "customers"
	TableEmployees   = "employees"
	TablePayrollRuns = "payroll_runs"
)

// Invoices v2 added note and paid_at.
var Invoices = MustTable(TableInvoices, 2,
	Field{Name: "number", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "customer_id", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "amount", Kind: crdt.KindNumber, Since: 1, Default: crdt.Number(0)},
	Field{Name: "currency", Kind: crdt.KindString, Since: 1, Default: crdt.String("EUR")},
	Field{Name: "status", Kind: crdt.KindString, Since: 1, Default: crdt.String("draft"), Indexed: true},
	Field{Name: "due_date", Kind: crdt.KindTime, Since: 1, Indexed: true},
	Field{Name: "note", Kind: crdt.KindString, Since: 2, Default: crdt.String("")},
	Field{Name: "paid_at", Kind: crdt.KindTime, Since: 2},
)

var Customers = MustTable(TableCustomers, 1,
	Field{Name: "name", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "email", Kind: crdt.KindString, Since: 1},
	Field{Name: "tax_id", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "country", Kind: crdt.KindString, Since: 1},
)

// Employees v2 added department.
var Employees = MustTable(TableEmployees, 2,
	Field{Name: "name", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "email", Kind: crdt.KindString, Since: 1},
	Field{Name: "salary", Kind: crdt.KindNumber, Since: 1, Default: crdt.Number(0)},
	Field{Name: "hired_at", Kind: crdt.KindTime, Since: 1},
	Field{Name: "active", Kind: crdt.KindBool, Since: 1, Default: crdt.Bool(true), Indexed: true},
	Field{Name: "department", Kind: crdt.KindString, Since: 2, Default: crdt.String("")},
)

var PayrollRuns = MustTable(TablePayrollRuns, 1,
	Field{Name: "period", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "employee_id", Kind: crdt.KindString, Since: 1, Indexed: true},
	Field{Name: "gross", Kind: crdt.KindNumber, Since: 1, Default: crdt.Number(0)},
	Field{Name: "net", Kind: crdt.KindNumber, Since: 1, Default: crdt.Number(0)},
	Field{Name: "status", Kind: crdt.KindString, Since: 1, Default: crdt.String("pending")},
	Field{Name: "paid_at", Kind: crdt.KindTime, Since: 1},
)

// Default returns the registry of the built-in business tables.
func Default() *Registry {
	r, err := NewRegistry(Invoices, Customers, Employees, PayrollRuns)
	if err != nil {
		panic(err)
	}
	return r
}
