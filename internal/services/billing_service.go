package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"mentis/internal/gateway"
	"mentis/internal/models/db_models"
	"mentis/internal/models/request_models"
	"mentis/internal/models/response_models"
	"mentis/internal/repositories"
	"mentis/pkg/utils"
)

// renewalNoticeDays is how far ahead of a subscription's end the renewal
// reminder goes out.
const renewalNoticeDays = 3

// bookingGraceDays is how long consultations already booked stay usable
// after a cancellation before the wind-down job cleans up.
const bookingGraceDays = 30

type BillingServiceInterface interface {
	Purchase(ctx context.Context, customerID string, req request_models.PurchaseRequest) (*response_models.PurchaseResponse, error)
	ConfirmPayment(ctx context.Context, gatewayBillCode string) error
	Cancel(ctx context.Context, customerID string, reason string) (*response_models.CancelResponse, error)
	Upgrade(ctx context.Context, customerID string, newPlanID string) (*response_models.ChangePlanResponse, error)
	Downgrade(ctx context.Context, customerID string, newPlanID string) (*response_models.ChangePlanResponse, error)
	GetSubscription(ctx context.Context, customerID string) (*response_models.SubscriptionResponse, error)
	Consume(ctx context.Context, customerID string) (*response_models.ConsumeResponse, error)

	ExpireSubscription(ctx context.Context, subID string) error
	ExpireBookingWindow(ctx context.Context, subID string) error
	ExpireDueSubscriptions(ctx context.Context, now time.Time) error
	SendRenewalNotices(ctx context.Context, now time.Time) error
}

func NewBillingService(
	subRepo repositories.ISubscriptionRepository,
	planRepo repositories.IPlanRepository,
	customerRepo repositories.ICustomerRepository,
	jobRepo repositories.IJobRepository,
	cycleService CycleServiceInterface,
	ledgerService LedgerServiceInterface,
	gw gateway.Client,
	mail IMailService,
) BillingServiceInterface {
	return &BillingService{
		subRepo:       subRepo,
		planRepo:      planRepo,
		customerRepo:  customerRepo,
		jobRepo:       jobRepo,
		cycleService:  cycleService,
		ledgerService: ledgerService,
		gw:            gw,
		mail:          mail,
		retryDelay:    2 * time.Second,
	}
}

type BillingService struct {
	subRepo       repositories.ISubscriptionRepository
	planRepo      repositories.IPlanRepository
	customerRepo  repositories.ICustomerRepository
	jobRepo       repositories.IJobRepository
	cycleService  CycleServiceInterface
	ledgerService LedgerServiceInterface
	gw            gateway.Client
	mail          IMailService

	// Delay before the single retry granted to transient gateway failures.
	retryDelay time.Duration
}

// Purchase contracts a plan for the customer. The subscription is created
// at the gateway and locally in awaiting_payment; it only activates when
// the payment confirmation webhook arrives.
func (b *BillingService) Purchase(ctx context.Context, customerID string, req request_models.PurchaseRequest) (*response_models.PurchaseResponse, error) {

	customer, err := b.customerRepo.GetCustomerById(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if customer == nil {
		return nil, utils.ErrCustomerNotFound
	}

	plan, err := b.planRepo.GetPlanInfoById(ctx, req.PlanID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if plan == nil || !plan.IsActive {
		return nil, utils.ErrPlanNotFound
	}

	existing, err := b.subRepo.FindNonTerminalByCustomer(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if existing != nil {
		return nil, utils.ErrActiveSubscriptionExists
	}

	startsAt := time.Now().In(utils.BillingLocation())
	if req.StartAt != "" {
		parsed, perr := time.Parse(time.RFC3339, req.StartAt)
		if perr != nil {
			return nil, fmt.Errorf("%w: start_at must be RFC3339", utils.ErrInvalidDate)
		}
		if parsed.After(startsAt) {
			startsAt = parsed.In(utils.BillingLocation())
		}
	}

	if err := b.ensureGatewayCustomer(ctx, customer); err != nil {
		return nil, err
	}

	profile, err := b.gw.CreatePaymentProfile(ctx, mustParseID(customer.GatewayCustomerID), req.PaymentToken)
	if err != nil {
		return nil, err
	}
	customer.PaymentProfileID = strconv.FormatInt(profile.ID, 10)
	customer.PaymentToken = req.PaymentToken
	if err := b.customerRepo.UpdateCustomer(ctx, customer); err != nil {
		return nil, utils.ErrDatabaseError
	}

	gwSubReq := gateway.SubscriptionRequest{
		PlanID:     mustParseID(plan.GatewayPlanID),
		CustomerID: mustParseID(customer.GatewayCustomerID),
	}
	if req.StartAt != "" {
		gwSubReq.StartAt = startsAt.Format(time.RFC3339)
	}

	gwSub, err := b.gw.CreateSubscription(ctx, gwSubReq)
	if err != nil {
		return nil, err
	}

	sub := &db_models.Subscription{
		CustomerID:            customer.ID,
		PlanID:                plan.ID,
		Status:                db_models.SubStatusAwaitingPayment,
		StartsAt:              startsAt.Unix(),
		EndsAt:                commitmentEnd(plan, startsAt),
		GatewaySubscriptionID: strconv.FormatInt(gwSub.ID, 10),
	}
	if err := b.subRepo.CreateSubscription(ctx, sub); err != nil {
		return nil, utils.ErrDatabaseError
	}

	customer.GatewaySubscriptionID = sub.GatewaySubscriptionID
	if err := b.customerRepo.UpdateCustomer(ctx, customer); err != nil {
		return nil, utils.ErrDatabaseError
	}

	// The first cycle exists from day one, pending until the payment
	// confirmation webhook activates it. Linking the first charge to it
	// makes the posting idempotent under the cycle's unique index.
	cycle, err := b.cycleService.OpenPendingCycle(ctx, sub, startsAt)
	if err != nil {
		return nil, err
	}

	paymentURL := b.registerFirstBill(ctx, sub, plan, cycle, gwSub.ID)
	b.scheduleExpiration(ctx, sub, startsAt)

	return &response_models.PurchaseResponse{
		Subscription: subscriptionResponse(sub, plan, cycle),
		PaymentURL:   paymentURL,
	}, nil
}

// ConfirmPayment handles a paid-bill notification. Activation of an
// awaiting subscription and approval of the charge are both idempotent,
// so redelivered webhooks are harmless.
func (b *BillingService) ConfirmPayment(ctx context.Context, gatewayBillCode string) error {

	entry, err := b.ledgerService.ApproveByBillCode(ctx, gatewayBillCode)
	if err != nil {
		return err
	}
	if entry == nil {
		log.Printf("billing: no ledger entry for paid bill %s", gatewayBillCode)
		return nil
	}
	if entry.SubscriptionID == nil {
		return nil
	}

	sub, err := b.subRepo.GetSubscriptionById(ctx, entry.SubscriptionID.String())
	if err != nil {
		return utils.ErrDatabaseError
	}
	if sub == nil {
		return utils.ErrSubscriptionNotFound
	}

	if sub.Status != db_models.SubStatusAwaitingPayment {
		return nil
	}

	sub.Status = db_models.SubStatusActive
	if err := b.subRepo.UpdateSubscription(ctx, sub); err != nil {
		return utils.ErrDatabaseError
	}

	start := utils.FromUnixSecondsBR(sub.StartsAt)
	if now := time.Now().In(utils.BillingLocation()); start.Before(now) {
		start = now
	}
	if _, err := b.cycleService.ActivateCycle(ctx, sub, start); err != nil {
		return err
	}

	if b.mail != nil && sub.Customer.Email != "" {
		if err := b.mail.SendPlanActivatedEmail(sub.Customer.Email, sub.Plan.Name); err != nil {
			log.Printf("billing: failed to send activation mail for subscription %s: %v", sub.ID, err)
		}
	}

	return nil
}

// Cancel terminates the customer's subscription. Inside the withdrawal
// window the unconsumed value is refunded; after it, plans with a
// commitment period charge an early termination fee. Remote cleanup is
// best effort and never blocks the local cancellation.
func (b *BillingService) Cancel(ctx context.Context, customerID string, reason string) (*response_models.CancelResponse, error) {

	sub, err := b.subRepo.FindLatestByCustomer(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}

	switch sub.Status {
	case db_models.SubStatusCancelled:
		return nil, utils.ErrAlreadyCancelled
	case db_models.SubStatusExpired:
		return nil, utils.ErrSubscriptionExpired
	case db_models.SubStatusAwaitingPayment:
		return nil, utils.ErrAwaitingPayment
	}

	now := time.Now().In(utils.BillingLocation())
	resp := &response_models.CancelResponse{
		SubscriptionID: sub.ID,
		Status:         string(db_models.SubStatusCancelled),
		Refund:         decimal.Zero,
		Penalty:        decimal.Zero,
		Reason:         reason,
	}

	var excludeEntryID string

	start := utils.FromUnixSecondsBR(sub.StartsAt)
	resp.DaysUsed = utils.DaysUsed(start, now)

	if utils.InWithdrawalWindow(start, now) {
		resp.Withdrawal = true
		resp.Refund = b.withdrawalRefund(ctx, sub, now)
		if resp.Refund.IsPositive() {
			refund, rerr := b.ledgerService.PostRefund(ctx, ChargeInput{
				CustomerID:     sub.CustomerID,
				SubscriptionID: &sub.ID,
				Kind:           db_models.ChargeKindPlan,
				Value:          resp.Refund,
				Description:    "withdrawal refund",
			})
			if rerr != nil {
				return nil, rerr
			}
			excludeEntryID = refund.ID.String()
			b.applyRefundAtGateway(ctx, sub, resp.Refund)
		}
	} else {
		result := utils.EarlyTerminationPenalty(sub.Plan.Price, sub.Plan.Recurrence.CommitmentDays(), start, now)
		if result.Applies {
			resp.Penalty = result.Penalty
			b.chargePenalty(ctx, sub, result.Penalty, now)
			b.writeOffUnusedValue(ctx, sub, now)
		}
	}

	b.deleteRemoteSubscription(ctx, sub)

	if err := b.cycleService.CloseCycles(ctx, sub.ID.String()); err != nil {
		return nil, err
	}
	if err := b.ledgerService.CancelForSubscription(ctx, sub.ID.String(), excludeEntryID); err != nil {
		return nil, err
	}

	nowUnix := now.Unix()
	sub.Status = db_models.SubStatusCancelled
	sub.CancelledAt = &nowUnix
	sub.EndsAt = nowUnix
	if err := b.subRepo.UpdateSubscription(ctx, sub); err != nil {
		return nil, utils.ErrDatabaseError
	}

	b.scheduleBookingExpiration(ctx, sub, now)

	if b.mail != nil && sub.Customer.Email != "" {
		if err := b.mail.SendPlanCancelledEmail(sub.Customer.Email, sub.Plan.Name, resp.Penalty, resp.Refund); err != nil {
			log.Printf("billing: failed to send cancellation mail for subscription %s: %v", sub.ID, err)
		}
	}

	return resp, nil
}

func (b *BillingService) Upgrade(ctx context.Context, customerID string, newPlanID string) (*response_models.ChangePlanResponse, error) {
	return b.changePlan(ctx, customerID, newPlanID, true)
}

func (b *BillingService) Downgrade(ctx context.Context, customerID string, newPlanID string) (*response_models.ChangePlanResponse, error) {
	return b.changePlan(ctx, customerID, newPlanID, false)
}

// changePlan swaps the customer onto a new plan immediately. The gateway
// subscription is recreated; upgrades credit the unused days of the
// current cycle against the first charge of the new plan.
func (b *BillingService) changePlan(ctx context.Context, customerID string, newPlanID string, upgrade bool) (*response_models.ChangePlanResponse, error) {

	sub, err := b.subRepo.FindNonTerminalByCustomer(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}
	if sub.Status == db_models.SubStatusAwaitingPayment {
		return nil, utils.ErrAwaitingPayment
	}

	newPlan, err := b.planRepo.GetPlanInfoById(ctx, newPlanID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if newPlan == nil || !newPlan.IsActive {
		return nil, utils.ErrPlanNotFound
	}
	if newPlan.ID == sub.PlanID {
		return nil, fmt.Errorf("%w: already subscribed to this plan", utils.ErrValidation)
	}

	customer, err := b.customerRepo.GetCustomerById(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if customer == nil {
		return nil, utils.ErrCustomerNotFound
	}

	now := time.Now().In(utils.BillingLocation())
	start := utils.FromUnixSecondsBR(sub.StartsAt)

	// The unused days of the old cycle only discount the new plan when the
	// customer is actually moving up in price.
	discount := decimal.Zero
	if upgrade && newPlan.Price.GreaterThan(sub.Plan.Price) {
		discount = b.unusedCycleValue(ctx, sub, now)
	}

	// Leaving a commitment period early owes the same fee as a
	// cancellation would. The swap itself goes ahead regardless.
	penalty := utils.EarlyTerminationPenalty(sub.Plan.Price, sub.Plan.Recurrence.CommitmentDays(), start, now)

	// Replace the gateway subscription. Transient failures get one retry.
	if err := b.runWithRetry(func() error {
		return b.gw.DeleteSubscription(ctx, mustParseID(sub.GatewaySubscriptionID))
	}); err != nil {
		if !gateway.IsTransient(err) {
			return nil, err
		}
		log.Printf("billing: remote delete of subscription %s still failing, continuing: %v", sub.ID, err)
	}

	// The replacement keeps the customer's billing anchor: its first
	// regular charge falls on the next due date of the original start, not
	// on the day of the swap.
	nextDue := utils.ComputeCycle(start).DueDate
	for !nextDue.After(now) {
		nextDue = utils.ComputeCycle(nextDue).DueDate
	}

	var gwSub *gateway.Subscription
	if err := b.runWithRetry(func() error {
		var gerr error
		gwSub, gerr = b.gw.CreateSubscription(ctx, gateway.SubscriptionRequest{
			PlanID:     mustParseID(newPlan.GatewayPlanID),
			CustomerID: mustParseID(customer.GatewayCustomerID),
			StartAt:    nextDue.Format(time.RFC3339),
		})
		return gerr
	}); err != nil {
		return nil, err
	}

	if penalty.Applies {
		b.chargePenalty(ctx, sub, penalty.Penalty, now)
	}

	if err := b.cycleService.CloseCycles(ctx, sub.ID.String()); err != nil {
		return nil, err
	}
	if err := b.ledgerService.CancelForSubscription(ctx, sub.ID.String(), ""); err != nil {
		return nil, err
	}

	sub.PlanID = newPlan.ID
	sub.Plan = *newPlan
	sub.EndsAt = commitmentEnd(newPlan, now)
	sub.GatewaySubscriptionID = strconv.FormatInt(gwSub.ID, 10)
	if err := b.subRepo.UpdateSubscription(ctx, sub); err != nil {
		return nil, utils.ErrDatabaseError
	}

	cycle, err := b.cycleService.OpenCycle(ctx, sub, now)
	if err != nil {
		return nil, err
	}

	paymentURL := b.registerChangeBill(ctx, sub, newPlan, cycle, gwSub.ID, discount, upgrade)

	resp := &response_models.ChangePlanResponse{
		Subscription: subscriptionResponse(sub, newPlan, cycle),
		Discount:     discount,
		Penalty:      penalty.Penalty,
		PaymentURL:   paymentURL,
	}

	return resp, nil
}

func (b *BillingService) GetSubscription(ctx context.Context, customerID string) (*response_models.SubscriptionResponse, error) {

	sub, err := b.subRepo.FindNonTerminalByCustomer(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}

	var cycle *db_models.Cycle
	if sub.Status == db_models.SubStatusActive {
		cycle, _ = b.cycleService.GetActiveCycle(ctx, sub.ID.String())
	}

	resp := subscriptionResponse(sub, &sub.Plan, cycle)
	return &resp, nil
}

func (b *BillingService) Consume(ctx context.Context, customerID string) (*response_models.ConsumeResponse, error) {

	sub, err := b.subRepo.FindNonTerminalByCustomer(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}
	if sub.Status == db_models.SubStatusAwaitingPayment {
		return nil, utils.ErrAwaitingPayment
	}

	return b.cycleService.Consume(ctx, sub, time.Now().In(utils.BillingLocation()))
}

// ExpireSubscription forcefully ends one subscription, used by the
// scheduler when a persisted expiration job comes due.
func (b *BillingService) ExpireSubscription(ctx context.Context, subID string) error {

	sub, err := b.subRepo.GetSubscriptionById(ctx, subID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if sub == nil || sub.Terminal() {
		return nil
	}

	// Awaiting subscriptions expire only once their payment deadline is
	// actually past; active ones only past their end.
	now := time.Now().Unix()
	if sub.Status == db_models.SubStatusActive && (sub.EndsAt == 0 || sub.EndsAt > now) {
		return nil
	}

	return b.expire(ctx, sub)
}

// ExpireBookingWindow ends the grace period a cancelled subscription
// keeps for consultations already booked: any cycle still open is closed
// and unpaid charges are voided. Idempotent; running it against an
// already clean subscription changes nothing.
func (b *BillingService) ExpireBookingWindow(ctx context.Context, subID string) error {

	sub, err := b.subRepo.GetSubscriptionById(ctx, subID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if sub == nil || sub.Status != db_models.SubStatusCancelled {
		return nil
	}

	if err := b.cycleService.CloseCycles(ctx, sub.ID.String()); err != nil {
		return err
	}
	return b.ledgerService.CancelForSubscription(ctx, sub.ID.String(), "")
}

// ExpireDueSubscriptions sweeps active subscriptions whose period ended.
func (b *BillingService) ExpireDueSubscriptions(ctx context.Context, now time.Time) error {

	subs, err := b.subRepo.ListDueForExpiration(ctx, now.Unix())
	if err != nil {
		return utils.ErrDatabaseError
	}

	for i := range subs {
		if err := b.expire(ctx, &subs[i]); err != nil {
			log.Printf("billing: failed to expire subscription %s: %v", subs[i].ID, err)
		}
	}

	return nil
}

// SendRenewalNotices mails customers whose commitment period ends within
// the notice window.
func (b *BillingService) SendRenewalNotices(ctx context.Context, now time.Time) error {

	if b.mail == nil {
		return nil
	}

	from := now.Unix()
	to := now.AddDate(0, 0, renewalNoticeDays).Unix()
	subs, err := b.subRepo.ListEndingBetween(ctx, from, to)
	if err != nil {
		return utils.ErrDatabaseError
	}

	for i := range subs {
		sub := &subs[i]
		if sub.Customer.Email == "" {
			continue
		}
		endsAt := utils.FromUnixSecondsBR(sub.EndsAt)
		if err := b.mail.SendRenewalNoticeEmail(sub.Customer.Email, sub.Plan.Name, endsAt); err != nil {
			log.Printf("billing: failed to send renewal notice for subscription %s: %v", sub.ID, err)
		}
	}

	return nil
}

// ------------------- internals -------------------

func (b *BillingService) expire(ctx context.Context, sub *db_models.Subscription) error {

	b.deleteRemoteSubscription(ctx, sub)

	if err := b.cycleService.CloseCycles(ctx, sub.ID.String()); err != nil {
		return err
	}
	if err := b.ledgerService.CancelForSubscription(ctx, sub.ID.String(), ""); err != nil {
		return err
	}

	sub.Status = db_models.SubStatusExpired
	if sub.EndsAt == 0 {
		sub.EndsAt = time.Now().Unix()
	}
	if err := b.subRepo.UpdateSubscription(ctx, sub); err != nil {
		return utils.ErrDatabaseError
	}

	return nil
}

func (b *BillingService) ensureGatewayCustomer(ctx context.Context, customer *db_models.Customer) error {

	req := gateway.CustomerRequest{
		Name:         customer.Name,
		Email:        customer.Email,
		RegistryCode: customer.Document,
		Code:         customer.ID.String(),
		Phone:        customer.Phone,
		Address: &gateway.Address{
			Street:       customer.Street,
			Number:       customer.Number,
			Neighborhood: customer.District,
			City:         customer.City,
			State:        customer.State,
			ZipCode:      customer.ZipCode,
			Country:      "BR",
		},
	}

	if customer.GatewayCustomerID != "" {
		if _, err := b.gw.UpdateCustomer(ctx, mustParseID(customer.GatewayCustomerID), req); err != nil {
			return err
		}
		return nil
	}

	created, err := b.gw.CreateCustomer(ctx, req)
	if err != nil {
		return err
	}

	customer.GatewayCustomerID = strconv.FormatInt(created.ID, 10)
	if err := b.customerRepo.UpdateCustomer(ctx, customer); err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

// registerFirstBill records the first charge the gateway raised for a new
// subscription, linked to the pending cycle. Best effort: the webhook
// posting path recovers a missed bill later.
func (b *BillingService) registerFirstBill(ctx context.Context, sub *db_models.Subscription, plan *db_models.Plan, cycle *db_models.Cycle, gwSubID int64) string {

	bills, err := b.gw.GetBillsBySubscriptionID(ctx, gwSubID)
	if err != nil || len(bills) == 0 {
		if err != nil {
			log.Printf("billing: could not fetch first bill for subscription %s: %v", sub.ID, err)
		}
		return ""
	}

	bill := bills[0]
	if _, err := b.ledgerService.PostCharge(ctx, ChargeInput{
		CustomerID:      sub.CustomerID,
		SubscriptionID:  &sub.ID,
		CycleID:         &cycle.ID,
		Kind:            db_models.ChargeKindPlan,
		Value:           plan.Price,
		Description:     fmt.Sprintf("plan %s", plan.Name),
		GatewayBillCode: bill.Code,
		DueAt:           dueAtFor(utils.FromUnixSecondsBR(sub.StartsAt)),
	}); err != nil {
		log.Printf("billing: could not record first bill %s: %v", bill.Code, err)
	}

	return bill.URL
}

func (b *BillingService) registerChangeBill(ctx context.Context, sub *db_models.Subscription, plan *db_models.Plan, cycle *db_models.Cycle, gwSubID int64, discount decimal.Decimal, upgrade bool) string {

	kind := db_models.ChargeKindDowngrade
	if upgrade {
		kind = db_models.ChargeKindUpgrade
	}

	bills, err := b.gw.GetBillsBySubscriptionID(ctx, gwSubID)
	if err != nil || len(bills) == 0 {
		if err != nil {
			log.Printf("billing: could not fetch bill for plan change on subscription %s: %v", sub.ID, err)
		}
		return ""
	}
	bill := bills[0]

	value := plan.Price
	if discount.IsPositive() {
		if err := b.runWithRetry(func() error {
			discounted, derr := b.gw.ApplyDiscountToBill(ctx, bill.ID, discount.StringFixed(2))
			if derr == nil && discounted != nil {
				bill = *discounted
			}
			return derr
		}); err != nil {
			log.Printf("billing: could not apply discount to bill %s: %v", bill.Code, err)
		} else {
			value = value.Sub(discount)
			if value.IsNegative() {
				value = decimal.Zero
			}
		}
	}

	if _, err := b.ledgerService.PostCharge(ctx, ChargeInput{
		CustomerID:      sub.CustomerID,
		SubscriptionID:  &sub.ID,
		CycleID:         &cycle.ID,
		Kind:            kind,
		Value:           value,
		Description:     fmt.Sprintf("plan change to %s", plan.Name),
		GatewayBillCode: bill.Code,
		DueAt:           dueAtFor(utils.FromUnixSecondsBR(cycle.CycleStart)),
	}); err != nil {
		log.Printf("billing: could not record plan change bill %s: %v", bill.Code, err)
	}

	return bill.URL
}

// withdrawalRefund deducts every consultation the subscription ever
// consumed, across all of its cycles, from the plan price.
func (b *BillingService) withdrawalRefund(ctx context.Context, sub *db_models.Subscription, now time.Time) decimal.Decimal {

	used, err := b.cycleService.TotalConsumed(ctx, sub.ID.String())
	if err != nil {
		used = 0
	}

	cycleEnded := false
	if cycle, cerr := b.cycleService.GetActiveCycle(ctx, sub.ID.String()); cerr == nil {
		cycleEnded = now.Unix() >= cycle.CycleEnd
	}

	return utils.WithdrawalRefund(sub.Plan.Price, used, cycleEnded)
}

// applyRefundAtGateway mirrors a withdrawal refund on the gateway side:
// as a discount on the customer's next pending bill, or as a standalone
// credit when none is open. Best effort.
func (b *BillingService) applyRefundAtGateway(ctx context.Context, sub *db_models.Subscription, refund decimal.Decimal) {

	gwCustomerID := mustParseID(sub.Customer.GatewayCustomerID)

	var bills []gateway.Bill
	if err := b.runWithRetry(func() error {
		var gerr error
		bills, gerr = b.gw.GetBillsByCustomerID(ctx, gwCustomerID, "pending")
		return gerr
	}); err != nil {
		log.Printf("billing: could not fetch pending bills to refund subscription %s: %v", sub.ID, err)
		return
	}

	if len(bills) > 0 {
		bill := bills[0]
		if err := b.runWithRetry(func() error {
			_, derr := b.gw.ApplyDiscountToBill(ctx, bill.ID, refund.StringFixed(2))
			return derr
		}); err != nil {
			log.Printf("billing: could not apply refund to bill %s: %v", bill.Code, err)
		}
		return
	}

	if _, err := b.gw.CreateBill(ctx, gateway.BillRequest{
		CustomerID: gwCustomerID,
		BillItems: []gateway.BillItemRequest{
			{Amount: refund.Neg().StringFixed(2)},
		},
	}); err != nil {
		log.Printf("billing: could not raise refund credit for subscription %s: %v", sub.ID, err)
	}
}

// writeOffUnusedValue books the proportional value of the days left in
// the current cycle as a cancelled ledger entry, so the write-off shows
// up in the customer's statement next to the penalty.
func (b *BillingService) writeOffUnusedValue(ctx context.Context, sub *db_models.Subscription, now time.Time) {

	unused := b.unusedCycleValue(ctx, sub, now)
	if !unused.IsPositive() {
		return
	}

	if _, err := b.ledgerService.RecordCancelled(ctx, ChargeInput{
		CustomerID:     sub.CustomerID,
		SubscriptionID: &sub.ID,
		Kind:           db_models.ChargeKindPlan,
		Value:          unused,
		Description:    "unused cycle value written off at cancellation",
	}); err != nil {
		log.Printf("billing: could not record unused value for subscription %s: %v", sub.ID, err)
	}
}

// chargePenalty raises the early termination fee at the gateway and posts
// it to the ledger. Best effort: a gateway failure here must not block the
// cancellation itself.
func (b *BillingService) chargePenalty(ctx context.Context, sub *db_models.Subscription, penalty decimal.Decimal, now time.Time) {

	customer := &sub.Customer

	var bill *gateway.Bill
	err := b.runWithRetry(func() error {
		var gerr error
		bill, gerr = b.gw.CreatePenaltyBill(ctx, mustParseID(customer.GatewayCustomerID), penalty.StringFixed(2))
		return gerr
	})

	code := ""
	if err != nil {
		log.Printf("billing: could not create penalty bill for subscription %s: %v", sub.ID, err)
	} else if bill != nil {
		code = bill.Code
	}

	if _, err := b.ledgerService.PostCharge(ctx, ChargeInput{
		CustomerID:      sub.CustomerID,
		SubscriptionID:  &sub.ID,
		Kind:            db_models.ChargeKindPenalty,
		Value:           penalty,
		Description:     "early termination penalty",
		GatewayBillCode: code,
		DueAt:           dueAtFor(now),
	}); err != nil {
		log.Printf("billing: could not post penalty for subscription %s: %v", sub.ID, err)
	}
}

// unusedCycleValue prices the days left in the current cycle at the old
// plan's 30-day rate.
func (b *BillingService) unusedCycleValue(ctx context.Context, sub *db_models.Subscription, now time.Time) decimal.Decimal {

	cycle, err := b.cycleService.GetActiveCycle(ctx, sub.ID.String())
	if err != nil {
		return decimal.Zero
	}

	daysRemaining := int(time.Unix(cycle.CycleEnd, 0).Sub(now).Hours() / 24)
	if daysRemaining <= 0 {
		return decimal.Zero
	}

	return utils.ProportionalDiscount(monthlyShare(&sub.Plan), daysRemaining)
}

func (b *BillingService) deleteRemoteSubscription(ctx context.Context, sub *db_models.Subscription) {

	if sub.GatewaySubscriptionID == "" {
		return
	}

	if err := b.gw.DeleteSubscription(ctx, mustParseID(sub.GatewaySubscriptionID)); err != nil {
		log.Printf("billing: remote cancel of subscription %s failed, continuing: %v", sub.ID, err)
	}
}

func (b *BillingService) scheduleExpiration(ctx context.Context, sub *db_models.Subscription, start time.Time) {

	dates := utils.ComputeCycle(start)
	job := &db_models.ScheduledJob{
		Kind:     db_models.JobKindSubscriptionExpiration,
		TargetID: sub.ID,
		RunAt:    dates.DueDate.Unix(),
	}

	if err := b.jobRepo.CreateJob(ctx, job); err != nil {
		log.Printf("billing: could not schedule expiration for subscription %s: %v", sub.ID, err)
	}
}

// scheduleBookingExpiration queues the wind-down of a cancelled
// subscription's remaining bookings once the grace period lapses.
func (b *BillingService) scheduleBookingExpiration(ctx context.Context, sub *db_models.Subscription, now time.Time) {

	job := &db_models.ScheduledJob{
		Kind:     db_models.JobKindBookingExpiration,
		TargetID: sub.ID,
		RunAt:    now.AddDate(0, 0, bookingGraceDays).Unix(),
	}

	if err := b.jobRepo.CreateJob(ctx, job); err != nil {
		log.Printf("billing: could not schedule booking wind-down for subscription %s: %v", sub.ID, err)
	}
}

// runWithRetry runs op, granting one retry after a fixed delay when the
// failure is a transient gateway error.
func (b *BillingService) runWithRetry(op func() error) error {

	err := op()
	if err == nil || !gateway.IsTransient(err) {
		return err
	}

	log.Printf("billing: transient gateway error, retrying once: %v", err)
	time.Sleep(b.retryDelay)
	return op()
}

// dueAtFor derives the payment deadline of a charge anchored at start.
func dueAtFor(start time.Time) *int64 {
	due := utils.ComputeCycle(start).DueDate.Unix()
	return &due
}

func commitmentEnd(plan *db_models.Plan, start time.Time) int64 {
	days := plan.Recurrence.CommitmentDays()
	if days <= 0 {
		return 0
	}
	return start.AddDate(0, 0, days).Unix()
}

// monthlyShare normalizes a plan's price to its 30-day slice.
func monthlyShare(plan *db_models.Plan) decimal.Decimal {
	if plan.DurationDays > utils.DefaultCycleDays {
		return plan.Price.
			Mul(decimal.NewFromInt(int64(utils.DefaultCycleDays))).
			Div(decimal.NewFromInt(int64(plan.DurationDays)))
	}
	return plan.Price
}

func subscriptionResponse(sub *db_models.Subscription, plan *db_models.Plan, cycle *db_models.Cycle) response_models.SubscriptionResponse {

	resp := response_models.SubscriptionResponse{
		ID:       sub.ID,
		PlanID:   sub.PlanID,
		Status:   string(sub.Status),
		StartsAt: utils.FormatRFC3339BR(utils.FromUnixSecondsBR(sub.StartsAt)),
		EndsAt:   utils.FormatRFC3339BR(utils.FromUnixSecondsBR(sub.EndsAt)),
	}
	if plan != nil {
		resp.PlanName = plan.Name
	}
	if cycle != nil {
		resp.Cycle = &response_models.CycleResponse{
			ID:         cycle.ID,
			CycleStart: utils.FormatRFC3339BR(utils.FromUnixSecondsBR(cycle.CycleStart)),
			CycleEnd:   utils.FormatRFC3339BR(utils.FromUnixSecondsBR(cycle.CycleEnd)),
			Status:     string(cycle.Status),
			Allowance:  cycle.Allowance,
			Used:       cycle.Used,
		}
	}
	return resp
}

func mustParseID(s string) int64 {
	if s == "" {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Printf("billing: malformed gateway id %q", s)
	}
	return id
}
