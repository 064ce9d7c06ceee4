package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mentis/internal/gateway"
	"mentis/internal/models/db_models"
)

func stamp(m *db_models.BaseModel) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}
	m.UpdatedAt = time.Now().Unix()
}

// ------------------- plan repo -------------------

type fakePlanRepo struct {
	plans map[uuid.UUID]*db_models.Plan
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[uuid.UUID]*db_models.Plan)}
}

func (f *fakePlanRepo) add(plan *db_models.Plan) *db_models.Plan {
	stamp(&plan.BaseModel)
	f.plans[plan.ID] = plan
	return plan
}

func (f *fakePlanRepo) GetPlanInfoById(_ context.Context, planID string) (*db_models.Plan, error) {
	id, err := uuid.Parse(planID)
	if err != nil {
		return nil, nil
	}
	return f.plans[id], nil
}

func (f *fakePlanRepo) GetAllActivePlans(_ context.Context) ([]db_models.Plan, error) {
	var out []db_models.Plan
	for _, p := range f.plans {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

// ------------------- customer repo -------------------

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*db_models.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*db_models.Customer)}
}

func (f *fakeCustomerRepo) CreateCustomer(_ context.Context, c *db_models.Customer) error {
	stamp(&c.BaseModel)
	f.customers[c.ID] = c
	return nil
}

func (f *fakeCustomerRepo) GetCustomerById(_ context.Context, id string) (*db_models.Customer, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return f.customers[parsed], nil
}

func (f *fakeCustomerRepo) GetCustomerByEmail(_ context.Context, email string) (*db_models.Customer, error) {
	for _, c := range f.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerRepo) GetCustomerByGatewayId(_ context.Context, gatewayID string) (*db_models.Customer, error) {
	for _, c := range f.customers {
		if c.GatewayCustomerID == gatewayID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerRepo) UpdateCustomer(_ context.Context, c *db_models.Customer) error {
	f.customers[c.ID] = c
	return nil
}

// ------------------- subscription repo -------------------

type fakeSubRepo struct {
	subs      map[uuid.UUID]*db_models.Subscription
	plans     *fakePlanRepo
	customers *fakeCustomerRepo
}

func newFakeSubRepo(plans *fakePlanRepo, customers *fakeCustomerRepo) *fakeSubRepo {
	return &fakeSubRepo{
		subs:      make(map[uuid.UUID]*db_models.Subscription),
		plans:     plans,
		customers: customers,
	}
}

func (f *fakeSubRepo) hydrate(s *db_models.Subscription) *db_models.Subscription {
	if s == nil {
		return nil
	}
	if plan, ok := f.plans.plans[s.PlanID]; ok {
		s.Plan = *plan
	}
	if customer, ok := f.customers.customers[s.CustomerID]; ok {
		s.Customer = *customer
	}
	return s
}

func (f *fakeSubRepo) CreateSubscription(_ context.Context, s *db_models.Subscription) error {
	stamp(&s.BaseModel)
	f.subs[s.ID] = s
	return nil
}

func (f *fakeSubRepo) GetSubscriptionById(_ context.Context, id string) (*db_models.Subscription, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return f.hydrate(f.subs[parsed]), nil
}

func (f *fakeSubRepo) GetSubscriptionByGatewayId(_ context.Context, gatewayID string) (*db_models.Subscription, error) {
	for _, s := range f.subs {
		if s.GatewaySubscriptionID == gatewayID {
			return f.hydrate(s), nil
		}
	}
	return nil, nil
}

func (f *fakeSubRepo) FindNonTerminalByCustomer(_ context.Context, customerID string) (*db_models.Subscription, error) {
	parsed, err := uuid.Parse(customerID)
	if err != nil {
		return nil, nil
	}
	for _, s := range f.subs {
		if s.CustomerID == parsed && !s.Terminal() {
			return f.hydrate(s), nil
		}
	}
	return nil, nil
}

func (f *fakeSubRepo) FindLatestByCustomer(_ context.Context, customerID string) (*db_models.Subscription, error) {
	parsed, err := uuid.Parse(customerID)
	if err != nil {
		return nil, nil
	}
	var latest *db_models.Subscription
	for _, s := range f.subs {
		if s.CustomerID == parsed && (latest == nil || s.CreatedAt > latest.CreatedAt) {
			latest = s
		}
	}
	return f.hydrate(latest), nil
}

func (f *fakeSubRepo) UpdateSubscription(_ context.Context, s *db_models.Subscription) error {
	f.subs[s.ID] = s
	return nil
}

func (f *fakeSubRepo) ListDueForExpiration(_ context.Context, nowUnix int64) ([]db_models.Subscription, error) {
	var out []db_models.Subscription
	for _, s := range f.subs {
		if s.Status == db_models.SubStatusActive && s.EndsAt > 0 && s.EndsAt <= nowUnix {
			out = append(out, *f.hydrate(s))
		}
	}
	return out, nil
}

func (f *fakeSubRepo) ListEndingBetween(_ context.Context, fromUnix, toUnix int64) ([]db_models.Subscription, error) {
	var out []db_models.Subscription
	for _, s := range f.subs {
		if s.Status == db_models.SubStatusActive && s.EndsAt > fromUnix && s.EndsAt <= toUnix {
			out = append(out, *f.hydrate(s))
		}
	}
	return out, nil
}

// ------------------- cycle repo -------------------

type fakeCycleRepo struct {
	cycles     map[uuid.UUID]*db_models.Cycle
	allowances map[string]*db_models.MonthlyAllowance
}

func newFakeCycleRepo() *fakeCycleRepo {
	return &fakeCycleRepo{
		cycles:     make(map[uuid.UUID]*db_models.Cycle),
		allowances: make(map[string]*db_models.MonthlyAllowance),
	}
}

// Writes store copies and reads hand back copies, like a database round
// trip does, so the services' own bookkeeping on structs they hold never
// aliases the stored row.
func (f *fakeCycleRepo) CreateCycle(_ context.Context, c *db_models.Cycle) error {
	stamp(&c.BaseModel)
	cp := *c
	f.cycles[c.ID] = &cp
	return nil
}

func (f *fakeCycleRepo) GetCycleById(_ context.Context, id string) (*db_models.Cycle, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	c, ok := f.cycles[parsed]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCycleRepo) GetActiveCycleBySubscription(_ context.Context, subID string) (*db_models.Cycle, error) {
	parsed, err := uuid.Parse(subID)
	if err != nil {
		return nil, nil
	}
	var newest *db_models.Cycle
	for _, c := range f.cycles {
		if c.SubscriptionID == parsed && c.Status == db_models.CycleStatusActive {
			if newest == nil || c.CycleStart > newest.CycleStart {
				newest = c
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeCycleRepo) GetPendingCycleBySubscription(_ context.Context, subID string) (*db_models.Cycle, error) {
	parsed, err := uuid.Parse(subID)
	if err != nil {
		return nil, nil
	}
	var newest *db_models.Cycle
	for _, c := range f.cycles {
		if c.SubscriptionID == parsed && c.Status == db_models.CycleStatusPending {
			if newest == nil || c.CycleStart > newest.CycleStart {
				newest = c
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeCycleRepo) ListCyclesBySubscription(_ context.Context, subID string) ([]db_models.Cycle, error) {
	parsed, err := uuid.Parse(subID)
	if err != nil {
		return nil, nil
	}
	var out []db_models.Cycle
	for _, c := range f.cycles {
		if c.SubscriptionID == parsed {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCycleRepo) UpdateCycle(_ context.Context, c *db_models.Cycle) error {
	cp := *c
	f.cycles[c.ID] = &cp
	return nil
}

func (f *fakeCycleRepo) ConsumeUnit(_ context.Context, cycleID string) (bool, error) {
	parsed, err := uuid.Parse(cycleID)
	if err != nil {
		return false, nil
	}
	c, ok := f.cycles[parsed]
	if !ok || c.Status != db_models.CycleStatusActive || c.Used >= c.Allowance {
		return false, nil
	}
	c.Used++
	return true, nil
}

func (f *fakeCycleRepo) CancelActiveBySubscription(_ context.Context, subID string) error {
	parsed, err := uuid.Parse(subID)
	if err != nil {
		return nil
	}
	for _, c := range f.cycles {
		if c.SubscriptionID == parsed &&
			(c.Status == db_models.CycleStatusActive || c.Status == db_models.CycleStatusPending) {
			c.Status = db_models.CycleStatusCancelled
			c.Allowance = c.Used
		}
	}
	return nil
}

func (f *fakeCycleRepo) UpsertMonthlyAllowance(_ context.Context, row *db_models.MonthlyAllowance) error {
	key := fmt.Sprintf("%s/%d/%d", row.SubscriptionID, row.Month, row.Year)
	if existing, ok := f.allowances[key]; ok {
		existing.Used = row.Used
		existing.Allowance = row.Allowance
		return nil
	}
	stamp(&row.BaseModel)
	f.allowances[key] = row
	return nil
}

func (f *fakeCycleRepo) GetMonthlyAllowance(_ context.Context, subID string, month, year int) (*db_models.MonthlyAllowance, error) {
	return f.allowances[fmt.Sprintf("%s/%d/%d", subID, month, year)], nil
}

// ------------------- ledger + invoice repos -------------------

type fakeLedgerRepo struct {
	entries  []*db_models.LedgerEntry
	invoices *fakeInvoiceRepo

	// When positive, GetEntryByBillCode reports a miss that many times
	// before answering, approximating a concurrent insert racing past the
	// lookup.
	billCodeLookupMisses int
}

func newFakeLedgerRepo(invoices *fakeInvoiceRepo) *fakeLedgerRepo {
	return &fakeLedgerRepo{invoices: invoices}
}

func (f *fakeLedgerRepo) CreateEntry(_ context.Context, e *db_models.LedgerEntry) error {
	for _, existing := range f.entries {
		if e.CycleID != nil && existing.CycleID != nil && *existing.CycleID == *e.CycleID {
			return gorm.ErrDuplicatedKey
		}
		if e.GatewayBillCode != nil && existing.GatewayBillCode != nil &&
			*existing.GatewayBillCode == *e.GatewayBillCode {
			return gorm.ErrDuplicatedKey
		}
	}
	stamp(&e.BaseModel)
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLedgerRepo) CreateEntryWithInvoice(ctx context.Context, e *db_models.LedgerEntry, invoice *db_models.Invoice) error {
	if err := f.CreateEntry(ctx, e); err != nil {
		return err
	}
	if invoice != nil && f.invoices != nil {
		return f.invoices.CreateInvoice(ctx, invoice)
	}
	return nil
}

func (f *fakeLedgerRepo) GetEntryById(_ context.Context, id string) (*db_models.LedgerEntry, error) {
	for _, e := range f.entries {
		if e.ID.String() == id {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeLedgerRepo) GetEntryByCycleId(_ context.Context, cycleID string) (*db_models.LedgerEntry, error) {
	for _, e := range f.entries {
		if e.CycleID != nil && e.CycleID.String() == cycleID {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeLedgerRepo) GetEntryByBillCode(_ context.Context, code string) (*db_models.LedgerEntry, error) {
	if f.billCodeLookupMisses > 0 {
		f.billCodeLookupMisses--
		return nil, nil
	}
	for _, e := range f.entries {
		if e.GatewayBillCode != nil && *e.GatewayBillCode == code {
			return e, nil
		}
	}
	return nil, nil
}

func sameSubscription(e *db_models.LedgerEntry, subID string) bool {
	if subID == "" {
		return e.SubscriptionID == nil
	}
	return e.SubscriptionID != nil && e.SubscriptionID.String() == subID
}

func (f *fakeLedgerRepo) FindRecentUnlinked(_ context.Context, customerID, subID string, kind db_models.ChargeKind, sinceUnix int64) (*db_models.LedgerEntry, error) {
	var newest *db_models.LedgerEntry
	for _, e := range f.entries {
		if e.CustomerID.String() == customerID && sameSubscription(e, subID) &&
			e.Kind == kind && e.CycleID == nil &&
			e.Status == db_models.LedgerStatusAwaitingPayment && e.CreatedAt >= sinceUnix {
			if newest == nil || e.CreatedAt > newest.CreatedAt {
				newest = e
			}
		}
	}
	return newest, nil
}

func (f *fakeLedgerRepo) FindRecentByValue(_ context.Context, customerID, subID string, kind db_models.ChargeKind, value decimal.Decimal, sinceUnix int64, excludeBillCode string) (*db_models.LedgerEntry, error) {
	for _, e := range f.entries {
		if e.CustomerID.String() != customerID || !sameSubscription(e, subID) ||
			e.Kind != kind || !e.Value.Equal(value) ||
			e.Status != db_models.LedgerStatusAwaitingPayment || e.CreatedAt < sinceUnix {
			continue
		}
		if e.GatewayBillCode != nil && *e.GatewayBillCode == excludeBillCode {
			continue
		}
		return e, nil
	}
	return nil, nil
}

func (f *fakeLedgerRepo) UpdateEntry(_ context.Context, e *db_models.LedgerEntry) error {
	return nil
}

func (f *fakeLedgerRepo) CancelPendingBySubscription(_ context.Context, subID string, excludeEntryID string) error {
	for _, e := range f.entries {
		if e.SubscriptionID == nil || e.SubscriptionID.String() != subID {
			continue
		}
		if e.Status != db_models.LedgerStatusAwaitingPayment || e.Kind == db_models.ChargeKindPenalty {
			continue
		}
		if excludeEntryID != "" && e.ID.String() == excludeEntryID {
			continue
		}
		e.Status = db_models.LedgerStatusCancelled
	}
	return nil
}

func (f *fakeLedgerRepo) ListEntriesByCustomer(_ context.Context, customerID string) ([]db_models.LedgerEntry, error) {
	var out []db_models.LedgerEntry
	for _, e := range f.entries {
		if e.CustomerID.String() == customerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeInvoiceRepo struct {
	invoices []*db_models.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{}
}

func (f *fakeInvoiceRepo) CreateInvoice(_ context.Context, inv *db_models.Invoice) error {
	stamp(&inv.BaseModel)
	f.invoices = append(f.invoices, inv)
	return nil
}

func (f *fakeInvoiceRepo) GetInvoiceById(_ context.Context, id string) (*db_models.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ID.String() == id {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeInvoiceRepo) GetInvoiceByCode(_ context.Context, code string) (*db_models.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.GatewayBillCode != nil && *inv.GatewayBillCode == code {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeInvoiceRepo) UpdateInvoice(_ context.Context, inv *db_models.Invoice) error {
	return nil
}

func (f *fakeInvoiceRepo) ListInvoicesByCustomer(_ context.Context, customerID string) ([]db_models.Invoice, error) {
	var out []db_models.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID.String() == customerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// ------------------- job repo -------------------

type fakeJobRepo struct {
	jobs []*db_models.ScheduledJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{}
}

func (f *fakeJobRepo) CreateJob(_ context.Context, job *db_models.ScheduledJob) error {
	stamp(&job.BaseModel)
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobRepo) ClaimDueJobs(_ context.Context, nowUnix int64, limit int) ([]db_models.ScheduledJob, error) {
	var out []db_models.ScheduledJob
	for _, job := range f.jobs {
		if !job.Done && job.RunAt <= nowUnix && len(out) < limit {
			job.Done = true
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) MarkDone(_ context.Context, jobID string) error {
	for _, job := range f.jobs {
		if job.ID.String() == jobID {
			job.Done = true
		}
	}
	return nil
}

// ------------------- gateway -------------------

type fakeGateway struct {
	nextID int64

	deleteCalls     int
	deleteErrs      []error
	createdSubs     []gateway.SubscriptionRequest
	penaltyBills    []string
	discounts       []string
	creditBills     []gateway.BillRequest
	bills           map[int64][]gateway.Bill
	billsByCustomer map[int64][]gateway.Bill
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:          100,
		bills:           make(map[int64][]gateway.Bill),
		billsByCustomer: make(map[int64][]gateway.Bill),
	}
}

func (f *fakeGateway) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeGateway) CreateCustomer(_ context.Context, req gateway.CustomerRequest) (*gateway.Customer, error) {
	return &gateway.Customer{ID: f.id(), Name: req.Name, Email: req.Email, Code: req.Code}, nil
}

func (f *fakeGateway) UpdateCustomer(_ context.Context, id int64, req gateway.CustomerRequest) (*gateway.Customer, error) {
	return &gateway.Customer{ID: id, Name: req.Name, Email: req.Email}, nil
}

func (f *fakeGateway) CreatePaymentProfile(_ context.Context, customerID int64, token string) (*gateway.PaymentProfile, error) {
	return &gateway.PaymentProfile{ID: f.id(), Status: "active"}, nil
}

func (f *fakeGateway) CreateSubscription(_ context.Context, req gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	f.createdSubs = append(f.createdSubs, req)
	sub := &gateway.Subscription{ID: f.id(), Status: "active"}
	bill := gateway.Bill{
		ID:     f.id(),
		Code:   fmt.Sprintf("B-%d", sub.ID),
		Status: "pending",
		URL:    fmt.Sprintf("https://pay.example/%d", sub.ID),
	}
	f.bills[sub.ID] = []gateway.Bill{bill}
	f.billsByCustomer[req.CustomerID] = append(f.billsByCustomer[req.CustomerID], bill)
	return sub, nil
}

func (f *fakeGateway) DeleteSubscription(_ context.Context, id int64) error {
	f.deleteCalls++
	if len(f.deleteErrs) > 0 {
		err := f.deleteErrs[0]
		f.deleteErrs = f.deleteErrs[1:]
		return err
	}
	return nil
}

func (f *fakeGateway) CreateBill(_ context.Context, req gateway.BillRequest) (*gateway.Bill, error) {
	f.creditBills = append(f.creditBills, req)
	id := f.id()
	bill := gateway.Bill{ID: id, Code: "BILL-" + strconv.FormatInt(id, 10), Status: "pending"}
	f.billsByCustomer[req.CustomerID] = append(f.billsByCustomer[req.CustomerID], bill)
	return &bill, nil
}

func (f *fakeGateway) CreatePenaltyBill(_ context.Context, customerID int64, amount string) (*gateway.Bill, error) {
	f.penaltyBills = append(f.penaltyBills, amount)
	id := f.id()
	return &gateway.Bill{ID: id, Code: "PEN-" + strconv.FormatInt(id, 10), Amount: amount, Status: "pending"}, nil
}

func (f *fakeGateway) GetBillByID(_ context.Context, billID int64) (*gateway.Bill, error) {
	for _, bills := range f.bills {
		for _, b := range bills {
			if b.ID == billID {
				return &b, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeGateway) GetBillsByCustomerID(_ context.Context, customerID int64, status string) ([]gateway.Bill, error) {
	var out []gateway.Bill
	for _, b := range f.billsByCustomer[customerID] {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeGateway) GetBillsBySubscriptionID(_ context.Context, subID int64) ([]gateway.Bill, error) {
	return f.bills[subID], nil
}

func (f *fakeGateway) ApplyDiscountToBill(_ context.Context, billID int64, amount string) (*gateway.Bill, error) {
	f.discounts = append(f.discounts, amount)
	return nil, nil
}

// ------------------- mail -------------------

type fakeMail struct {
	activated []string
	cancelled []string
	renewals  []string
}

func newFakeMail() *fakeMail {
	return &fakeMail{}
}

func (f *fakeMail) SendPlanActivatedEmail(to, planName string) error {
	f.activated = append(f.activated, to)
	return nil
}

func (f *fakeMail) SendPlanCancelledEmail(to, planName string, penalty, refund decimal.Decimal) error {
	f.cancelled = append(f.cancelled, to)
	return nil
}

func (f *fakeMail) SendRenewalNoticeEmail(to, planName string, endsAt time.Time) error {
	f.renewals = append(f.renewals, to)
	return nil
}
