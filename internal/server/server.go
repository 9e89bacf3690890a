package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/aula/internal/billing"
	billingdomain "github.com/smallbiznis/aula/internal/billing/domain"
	"github.com/smallbiznis/aula/internal/charge"
	chargedomain "github.com/smallbiznis/aula/internal/charge/domain"
	"github.com/smallbiznis/aula/internal/concept"
	conceptdomain "github.com/smallbiznis/aula/internal/concept/domain"
	"github.com/smallbiznis/aula/internal/config"
	"github.com/smallbiznis/aula/internal/employee"
	employeedomain "github.com/smallbiznis/aula/internal/employee/domain"
	"github.com/smallbiznis/aula/internal/expense"
	expensedomain "github.com/smallbiznis/aula/internal/expense/domain"
	"github.com/smallbiznis/aula/internal/invoice"
	invoicedomain "github.com/smallbiznis/aula/internal/invoice/domain"
	obslogger "github.com/smallbiznis/aula/internal/observability/logger"
	"github.com/smallbiznis/aula/internal/observability/metrics"
	"github.com/smallbiznis/aula/internal/payment"
	paymentdomain "github.com/smallbiznis/aula/internal/payment/domain"
	"github.com/smallbiznis/aula/internal/payroll"
	payrolldomain "github.com/smallbiznis/aula/internal/payroll/domain"
	"github.com/smallbiznis/aula/internal/providers/pdf"
	"github.com/smallbiznis/aula/internal/rate"
	ratedomain "github.com/smallbiznis/aula/internal/rate/domain"
	"github.com/smallbiznis/aula/internal/report"
	reportdomain "github.com/smallbiznis/aula/internal/report/domain"
	"github.com/smallbiznis/aula/internal/representative"
	repdomain "github.com/smallbiznis/aula/internal/representative/domain"
	"github.com/smallbiznis/aula/internal/school"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	"github.com/smallbiznis/aula/internal/student"
	studentdomain "github.com/smallbiznis/aula/internal/student/domain"
	"github.com/smallbiznis/aula/internal/user"
	userdomain "github.com/smallbiznis/aula/internal/user/domain"
	"github.com/smallbiznis/aula/internal/user/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	rate.Module,
	school.Module,
	representative.Module,
	student.Module,
	concept.Module,
	charge.Module,
	payment.Module,
	billing.Module,
	invoice.Module,
	employee.Module,
	expense.Module,
	payroll.Module,
	report.Module,
	user.Module,
	fx.Provide(pdf.New),
	fx.Provide(metrics.New),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	genID    *snowflake.Node
	sessions *session.Manager

	rateSvc    ratedomain.Service
	schoolSvc  schooldomain.Service
	repSvc     repdomain.Service
	studentSvc studentdomain.Service
	conceptSvc conceptdomain.Service
	chargeSvc  chargedomain.Service
	paymentSvc paymentdomain.Service
	billingSvc billingdomain.Service
	invoiceSvc invoicedomain.Service
	empSvc     employeedomain.Service
	expenseSvc expensedomain.Service
	payrollSvc payrolldomain.Service
	reportSvc  reportdomain.Service
	userSvc    userdomain.Service

	pdfProvider pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	GenID    *snowflake.Node
	Sessions *session.Manager

	RateSvc    ratedomain.Service
	SchoolSvc  schooldomain.Service
	RepSvc     repdomain.Service
	StudentSvc studentdomain.Service
	ConceptSvc conceptdomain.Service
	ChargeSvc  chargedomain.Service
	PaymentSvc paymentdomain.Service
	BillingSvc billingdomain.Service
	InvoiceSvc invoicedomain.Service
	EmpSvc     employeedomain.Service
	ExpenseSvc expensedomain.Service
	PayrollSvc payrolldomain.Service
	ReportSvc  reportdomain.Service
	UserSvc    userdomain.Service

	PDFProvider pdf.Provider
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		sessions:    p.Sessions,
		rateSvc:     p.RateSvc,
		schoolSvc:   p.SchoolSvc,
		repSvc:      p.RepSvc,
		studentSvc:  p.StudentSvc,
		conceptSvc:  p.ConceptSvc,
		chargeSvc:   p.ChargeSvc,
		paymentSvc:  p.PaymentSvc,
		billingSvc:  p.BillingSvc,
		invoiceSvc:  p.InvoiceSvc,
		empSvc:      p.EmpSvc,
		expenseSvc:  p.ExpenseSvc,
		payrollSvc:  p.PayrollSvc,
		reportSvc:   p.ReportSvc,
		userSvc:     p.UserSvc,
		pdfProvider: p.PDFProvider,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	admin := s.RequireRole(userdomain.RoleAdmin)
	staff := s.RequireRole(userdomain.RoleAdmin, userdomain.RoleAdministrativeStaff)

	api.GET("/school", s.GetSchoolConfiguration)
	api.PUT("/school", admin, s.UpdateSchoolConfiguration)

	api.POST("/exchange-rates", staff, s.CreateExchangeRate)
	api.GET("/exchange-rates", s.ListExchangeRates)
	api.GET("/exchange-rates/alert", s.ExchangeRateAlert)
	api.PUT("/exchange-rates/:id", staff, s.UpdateExchangeRate)
	api.DELETE("/exchange-rates/:id", admin, s.DeleteExchangeRate)

	api.POST("/representatives", staff, s.CreateRepresentative)
	api.GET("/representatives", s.ListRepresentatives)
	api.GET("/representatives/:id", s.GetRepresentative)
	api.PUT("/representatives/:id", staff, s.UpdateRepresentative)
	api.DELETE("/representatives/:id", admin, s.DeleteRepresentative)
	api.GET("/representatives/:id/statement", s.RepresentativeStatement)
	api.GET("/representatives/:id/credit", s.RepresentativeCredit)
	api.POST("/representatives/:id/apply-credit", staff, s.ApplyCredit)
	api.POST("/representatives/:id/apply-credit-balance", staff, s.ApplyCreditBalance)

	api.POST("/grade-levels", staff, s.CreateGradeLevel)
	api.GET("/grade-levels", s.ListGradeLevels)
	api.PUT("/grade-levels/:id", staff, s.UpdateGradeLevel)

	api.POST("/students", staff, s.CreateStudent)
	api.GET("/students", s.ListStudents)
	api.GET("/students/:id", s.GetStudent)
	api.PUT("/students/:id", staff, s.UpdateStudent)
	api.GET("/students/:id/annual-summary", s.StudentAnnualSummary)

	api.POST("/charge-concepts", staff, s.CreateChargeConcept)
	api.GET("/charge-concepts", s.ListChargeConcepts)
	api.GET("/charge-concepts/:id", s.GetChargeConcept)
	api.PUT("/charge-concepts/:id", staff, s.UpdateChargeConcept)

	api.POST("/charges", staff, s.CreateCharge)
	api.GET("/charges", s.ListCharges)
	api.GET("/charges/:id", s.GetCharge)
	api.PUT("/charges/:id/status", staff, s.UpdateChargeStatus)

	api.POST("/billing/run", staff, s.RunRecurringBilling)
	api.POST("/billing/apply-global-charge", staff, s.ApplyGlobalCharge)

	api.POST("/payments", staff, s.CreatePayment)
	api.GET("/payments", s.ListPayments)
	api.GET("/payments/:id", s.GetPayment)
	api.GET("/payments/:id/allocations", s.ListPaymentAllocations)

	api.POST("/invoices", staff, s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.GET("/invoices/:id/pdf", s.InvoicePDF)
	api.PUT("/invoices/:id/fiscal-details", staff, s.UpdateInvoiceFiscalDetails)
	api.POST("/invoices/:id/annul", staff, s.AnnulInvoice)

	api.POST("/credit-notes", staff, s.CreateCreditNote)
	api.GET("/credit-notes", s.ListCreditNotes)
	api.GET("/credit-notes/:id", s.GetCreditNote)

	api.POST("/departments", staff, s.CreateDepartment)
	api.GET("/departments", s.ListDepartments)
	api.POST("/positions", staff, s.CreatePosition)
	api.GET("/positions", s.ListPositions)

	api.POST("/employees", staff, s.CreateEmployee)
	api.GET("/employees", s.ListEmployees)
	api.GET("/employees/:id", s.GetEmployee)
	api.PUT("/employees/:id", staff, s.UpdateEmployee)
	api.POST("/employees/:id/hours", staff, s.AddEmployeeHours)
	api.GET("/employees/:id/salary-history", s.EmployeeSalaryHistory)
	api.GET("/employees/:id/components", s.EmployeeComponents)
	api.POST("/employees/:id/adjustments", staff, s.CreateBalanceAdjustment)
	api.GET("/employees/:id/adjustments", s.ListBalanceAdjustments)
	api.POST("/employees/:id/payments", staff, s.CreateEmployeePayment)
	api.GET("/employees/:id/payments", s.ListEmployeePayments)
	api.GET("/employees/:id/payable-items", s.ListPayableItems)
	api.GET("/employees/:id/payslips", s.ListPayslips)

	api.POST("/salary-components", staff, s.CreateSalaryComponent)
	api.GET("/salary-components", s.ListSalaryComponents)
	api.POST("/salary-components/assign", staff, s.AssignSalaryComponent)
	api.DELETE("/salary-components/assignments/:id", staff, s.RemoveSalaryComponent)

	api.POST("/payroll-runs", staff, s.CreatePayrollRun)
	api.GET("/payroll-runs", s.ListPayrollRuns)
	api.GET("/payroll-runs/:id", s.GetPayrollRun)
	api.GET("/payroll-runs/:id/details", s.PayrollRunDetails)
	api.POST("/payroll-runs/:id/confirm", staff, s.ConfirmPayrollRun)
	api.PUT("/payroll-runs/:id/status", staff, s.UpdatePayrollRunStatus)
	api.DELETE("/payroll-runs/:id", staff, s.DeletePayrollRun)

	api.GET("/payslips/:id", s.GetPayslip)
	api.GET("/payslips/:id/pdf", s.PayslipPDF)

	api.POST("/suppliers", staff, s.CreateSupplier)
	api.GET("/suppliers", s.ListSuppliers)
	api.POST("/expense-categories", staff, s.CreateExpenseCategory)
	api.GET("/expense-categories", s.ListExpenseCategories)
	api.POST("/expenses", staff, s.CreateExpense)
	api.GET("/expenses", s.ListExpenses)
	api.GET("/expenses/:id", s.GetExpense)
	api.POST("/expenses/:id/payments", staff, s.RegisterExpensePayment)
	api.GET("/expenses/:id/payments", s.ListExpensePayments)

	api.GET("/reports/delinquency", s.DelinquencyReport)
	api.GET("/reports/dashboard", s.DashboardReport)

	api.POST("/users", admin, s.CreateUser)
	api.GET("/users", admin, s.ListUsers)
	api.PUT("/users/:id", admin, s.UpdateUser)
}
