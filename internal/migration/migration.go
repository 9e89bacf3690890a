package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	invoicedomain "github.com/smallbiznis/aula/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/aula/internal/payroll/domain"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	userdomain "github.com/smallbiznis/aula/internal/user/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models. It covers the sqlite
// development and test databases, where the versioned SQL does not run.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schooldomain.SchoolConfiguration{},
		&ratedomain.ExchangeRate{},
		&repdomain.Representative{},
		&studentdomain.GradeLevel{},
		&studentdomain.Student{},
		&conceptdomain.ChargeConcept{},
		&chargedomain.AppliedCharge{},
		&paymentdomain.Payment{},
		&paymentdomain.PaymentAllocation{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.CreditNote{},
		&invoicedomain.CreditNoteItem{},
		&employeedomain.Department{},
		&employeedomain.Position{},
		&employeedomain.Employee{},
		&employeedomain.SalaryComponentDefinition{},
		&employeedomain.EmployeeSalaryComponent{},
		&employeedomain.SalaryHistory{},
		&payrolldomain.PayrollRun{},
		&payrolldomain.RunEmployeeDetail{},
		&payrolldomain.BalanceAdjustment{},
		&payrolldomain.EmployeePayableItem{},
		&payrolldomain.EmployeePayment{},
		&payrolldomain.EmployeePaymentAllocation{},
		&payrolldomain.Payslip{},
		&expensedomain.Supplier{},
		&expensedomain.ExpenseCategory{},
		&expensedomain.Expense{},
		&expensedomain.ExpensePayment{},
		&userdomain.User{},
		&userdomain.Session{},
	)
}
