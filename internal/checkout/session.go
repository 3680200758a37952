package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/discount"
	"github.com/sixstreet/storefront/internal/events"
	"github.com/sixstreet/storefront/internal/shipping"
)

var (
	ErrNotReady        = errors.New("checkout: address, courier and service are required")
	ErrInFlight        = errors.New("checkout: payment already in progress")
	ErrLocked          = errors.New("checkout: selection can no longer change")
	ErrAddressNotFound = errors.New("checkout: address not found")
	ErrServiceNotFound = errors.New("checkout: shipping service not offered")
	ErrNoCourier       = errors.New("checkout: select a courier first")
	ErrVoucherNotFound = errors.New("checkout: voucher not found")
	ErrPointsLocked    = errors.New("checkout: points already redeemed for this transaction")
	ErrRedeemFailed    = errors.New("checkout: points redemption failed")
	ErrInvalidOutcome  = errors.New("checkout: outcome not expected in current state")
)

// Session is one user's checkout of one transaction. All methods are safe for
// concurrent use; Submit releases the lock while talking to the backend.
type Session struct {
	svc *Service

	mu         sync.Mutex
	userID     string
	txUUID     string
	state      State
	rows       []commerce.TransactionRow
	addresses  []commerce.Address
	membership commerce.Membership
	vouchers   []commerce.Voucher
	category   string
	flagged    bool

	address *commerce.Address
	courier string
	options []shipping.Option
	service *shipping.Option
	voucher discount.Applier
	points  int
	// redeemed is the count already taken by the backend for this transaction
	redeemed int
	token    commerce.PaymentToken
	last     *events.Notice
}

func (s *Session) transition(to State) {
	if s.state != to && !CanTransition(s.state, to) {
		s.svc.Log.Error("illegal checkout transition",
			zap.String("transaction_uuid", s.txUUID), zap.String("from", string(s.state)), zap.String("to", string(to)))
	}
	s.state = to
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) UserID() string          { return s.userID }
func (s *Session) TransactionUUID() string { return s.txUUID }

func (s *Session) guardSelecting() error {
	switch {
	case s.state == StatePaymentInFlight || s.state == StatePaymentPending:
		return ErrInFlight
	case !s.state.selecting():
		return ErrLocked
	}
	return nil
}

func (s *Session) notify(ctx context.Context, typ string, lvl events.Level, msg string, data map[string]any) events.Notice {
	n := events.Notice{Type: typ, Level: lvl, UserID: s.userID, TransactionUUID: s.txUUID, Message: msg, Data: data}
	s.svc.Notifier.Notify(ctx, n)
	return n
}

// SelectAddress picks a saved address. The shipping quote is recomputed when a
// courier was already chosen.
func (s *Session) SelectAddress(ctx context.Context, addressID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardSelecting(); err != nil {
		return err
	}
	var found *commerce.Address
	for i := range s.addresses {
		if s.addresses[i].ID.String() == addressID {
			a := s.addresses[i]
			found = &a
			break
		}
	}
	if found == nil {
		return ErrAddressNotFound
	}
	s.address = found
	s.options, s.service = nil, nil
	s.transition(StateShippingSelection)
	if s.courier == "" {
		return nil
	}
	return s.quoteLocked(ctx, s.courier)
}

// SelectCourier resolves the courier's tiers and defaults to the first one.
func (s *Session) SelectCourier(ctx context.Context, courier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardSelecting(); err != nil {
		return err
	}
	if s.address == nil {
		return ErrNotReady
	}
	return s.quoteLocked(ctx, courier)
}

func (s *Session) quoteLocked(ctx context.Context, courier string) error {
	opts, err := s.svc.Shipping.Options(ctx, s.address.SubdistrictID, courier)
	if err != nil {
		s.options, s.service = nil, nil
		s.transition(StateShippingSelection)
		return err
	}
	s.courier = strings.ToLower(strings.TrimSpace(courier))
	s.options = opts
	def, ok := shipping.DefaultOption(opts)
	if !ok {
		s.service = nil
		s.transition(StateShippingSelection)
		return shipping.ErrUnavailable
	}
	s.service = &def
	s.transition(StateReadyToPay)
	return nil
}

func (s *Session) SelectService(service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardSelecting(); err != nil {
		return err
	}
	if len(s.options) == 0 {
		return ErrNoCourier
	}
	o, ok := shipping.FindService(s.options, service)
	if !ok {
		return ErrServiceNotFound
	}
	s.service = &o
	s.transition(StateReadyToPay)
	return nil
}

func (s *Session) subtotalLocked() int64 {
	var sum int64
	for _, r := range s.rows {
		sum += r.LineTotal()
	}
	return sum
}

// ApplyVoucher validates locally, then asks the matching backend endpoint.
// While a voucher is applied further applies return it unchanged.
func (s *Session) ApplyVoucher(ctx context.Context, code string) (discount.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardSelecting(); err != nil {
		return discount.Result{}, err
	}
	var v *commerce.Voucher
	for i := range s.vouchers {
		if strings.EqualFold(s.vouchers[i].Code, strings.TrimSpace(code)) {
			v = &s.vouchers[i]
			break
		}
	}
	if v == nil {
		s.notify(ctx, events.EventVoucherRejected, events.LevelError, "Voucher tidak ditemukan", map[string]any{"code": code})
		return discount.Result{}, ErrVoucherNotFound
	}
	dv := discount.Voucher{
		Code:               v.Code,
		DiscountPercentage: v.DiscountPercentage,
		ApplicableProducts: v.ApplicableProducts,
		ValidUntil:         v.ValidUntil,
		IsUsed:             v.IsUsed,
	}
	_, wasApplied := s.voucher.Applied()
	subtotal := s.subtotalLocked()
	res, err := s.voucher.Apply(dv, s.category, s.flagged, subtotal)
	if err != nil {
		s.notify(ctx, events.EventVoucherRejected, events.LevelError, err.Error(), map[string]any{"code": v.Code})
		return discount.Result{}, err
	}
	if wasApplied {
		return res, nil
	}

	br, err := s.svc.Backend.ApplyVoucher(ctx, s.userID, dv.Sixstreet(), commerce.VoucherApply{
		Code:            v.Code,
		TransactionUUID: s.txUUID,
		OrderAmount:     subtotal,
	})
	if err != nil {
		s.voucher.Reset()
		s.notify(ctx, events.EventVoucherRejected, events.LevelError, "Voucher gagal digunakan", map[string]any{"code": v.Code})
		return discount.Result{}, err
	}
	if br.DiscountAmount != nil {
		res = s.voucher.ApplyAmount(*br.DiscountAmount)
	}
	return res, nil
}

// UsePoints clamps the request into [0, available] and returns the value kept.
func (s *Session) UsePoints(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardSelecting(); err != nil {
		return s.points, err
	}
	n = discount.ClampPoints(s.membership.AvailablePoints, n)
	if s.redeemed > 0 && n != s.redeemed {
		return s.points, ErrPointsLocked
	}
	s.points = n
	return n, nil
}

type Summary struct {
	TransactionUUID string                    `json:"transaction_uuid"`
	State           State                     `json:"state"`
	Items           []commerce.TransactionRow `json:"items"`
	Addresses       []commerce.Address        `json:"addresses"`
	Address         *commerce.Address         `json:"address,omitempty"`
	Courier         string                    `json:"courier,omitempty"`
	Options         []shipping.Option         `json:"options,omitempty"`
	Service         *shipping.Option          `json:"service,omitempty"`
	Subtotal        int64                     `json:"subtotal"`
	ShippingCost    int64                     `json:"shipping_cost"`
	VoucherCode     string                    `json:"voucher_code,omitempty"`
	VoucherDiscount int64                     `json:"voucher_discount"`
	PointsAvailable int                       `json:"points_available"`
	PointsUsed      int                       `json:"points_used"`
	PointsValue     int64                     `json:"points_value"`
	FinalTotal      int64                     `json:"final_total"`
	CanSubmit       bool                      `json:"can_submit"`
	Notice          *events.Notice            `json:"notice,omitempty"`
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() Summary {
	sum := Summary{
		TransactionUUID: s.txUUID,
		State:           s.state,
		Items:           append([]commerce.TransactionRow(nil), s.rows...),
		Addresses:       s.addresses,
		Address:         s.address,
		Courier:         s.courier,
		Options:         s.options,
		Service:         s.service,
		Subtotal:        s.subtotalLocked(),
		PointsAvailable: s.membership.AvailablePoints,
		PointsUsed:      s.points,
		PointsValue:     discount.PointsValue(s.points),
		CanSubmit:       s.readyLocked() && s.state == StateReadyToPay,
		Notice:          s.last,
	}
	if s.service != nil {
		sum.ShippingCost = s.service.Cost
	}
	if r, ok := s.voucher.Applied(); ok {
		sum.VoucherCode = r.Code
		sum.VoucherDiscount = r.DiscountAmount
	}
	sum.FinalTotal = discount.FinalTotal(sum.Subtotal, sum.ShippingCost, sum.VoucherDiscount, sum.PointsUsed)
	return sum
}

func (s *Session) readyLocked() bool {
	return s.address != nil && s.courier != "" && s.service != nil
}

// Submit redeems points (once per transaction), persists the transaction and
// obtains the gateway token, strictly in that order. Any failure returns the
// session to ReadyToPay.
func (s *Session) Submit(ctx context.Context) (commerce.PaymentToken, error) {
	s.mu.Lock()
	switch {
	case s.state == StatePaymentInFlight || s.state == StatePaymentPending:
		s.mu.Unlock()
		return commerce.PaymentToken{}, ErrInFlight
	case s.state != StateReadyToPay || !s.readyLocked():
		s.mu.Unlock()
		return commerce.PaymentToken{}, ErrNotReady
	}
	sum := s.summaryLocked()
	redeemed := s.redeemed
	s.last = nil
	s.transition(StatePaymentInFlight)
	s.mu.Unlock()

	tok, err := s.submit(ctx, sum, redeemed)
	if err != nil {
		s.mu.Lock()
		s.transition(StateReadyToPay)
		n := s.notify(ctx, events.EventCheckoutFailed, events.LevelError, "Checkout gagal, silakan coba lagi",
			map[string]any{"error": err.Error()})
		s.last = &n
		s.mu.Unlock()
		s.svc.Log.Warn("checkout submit failed", zap.String("transaction_uuid", s.txUUID), zap.Error(err))
		return commerce.PaymentToken{}, err
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	s.notify(ctx, events.EventCheckoutSubmitted, events.LevelInfo, "Pembayaran dimulai",
		map[string]any{"final_total": sum.FinalTotal})
	return tok, nil
}

func (s *Session) submit(ctx context.Context, sum Summary, redeemed int) (commerce.PaymentToken, error) {
	svc := s.svc
	ctx, cancel := context.WithTimeout(ctx, svc.PaymentTimeout)
	defer cancel()

	if sum.PointsUsed > 0 && redeemed == 0 {
		err := svc.Backend.RedeemPoints(ctx, commerce.PointsRedeem{
			UserID:          s.userID,
			TransactionUUID: s.txUUID,
			Points:          sum.PointsUsed,
		})
		if err != nil {
			return commerce.PaymentToken{}, fmt.Errorf("%w: %v", ErrRedeemFailed, err)
		}
		s.mu.Lock()
		s.redeemed = sum.PointsUsed
		s.mu.Unlock()
		if err := svc.Ledger.RecordRedemption(ctx, s.txUUID, s.userID, sum.PointsUsed); err != nil {
			svc.Log.Error("record redemption failed", zap.String("transaction_uuid", s.txUUID), zap.Error(err))
		}
	}

	upd := commerce.TransactionUpdate{
		City:            sum.Address.City,
		Subdistrict:     sum.Address.Subdistrict,
		SubdistrictID:   sum.Address.SubdistrictID,
		AddressDetail:   sum.Address.Detail,
		Courier:         sum.Courier,
		Service:         sum.Service.Service,
		ETD:             shipping.NormalizeETD(sum.Service.ETD),
		ShippingCost:    sum.ShippingCost,
		VoucherApplied:  sum.VoucherCode != "",
		VoucherCode:     sum.VoucherCode,
		VoucherDiscount: sum.VoucherDiscount,
		PointsUsed:      sum.PointsUsed,
		PointsValue:     sum.PointsValue,
		Total:           sum.Subtotal + sum.ShippingCost,
		FinalTotal:      sum.FinalTotal,
		Status:          commerce.StatusPending,
	}
	if err := svc.Backend.UpdateTransaction(ctx, s.txUUID, upd); err != nil {
		return commerce.PaymentToken{}, fmt.Errorf("update transaction: %w", err)
	}

	rec, ok, err := svc.Ledger.Get(ctx, s.txUUID)
	if err != nil {
		svc.Log.Warn("payment ledger read failed", zap.String("transaction_uuid", s.txUUID), zap.Error(err))
	}
	if ok && rec.Token != "" && rec.GrossAmount == sum.FinalTotal {
		return commerce.PaymentToken{Token: rec.Token, RedirectURL: rec.RedirectURL}, nil
	}

	items := make([]commerce.PaymentItem, 0, len(sum.Items))
	for _, r := range sum.Items {
		items = append(items, commerce.PaymentItem{
			ID:       r.ProductID.String(),
			Name:     r.ProductName,
			Price:    r.Price,
			Quantity: r.Quantity,
		})
	}
	tok, err := svc.Backend.CreatePayment(ctx, commerce.PaymentRequest{
		TransactionUUID: s.txUUID,
		Items:           items,
		ShippingCost:    sum.ShippingCost,
		VoucherDiscount: sum.VoucherDiscount,
		PointsDiscount:  sum.PointsValue,
		GrossAmount:     sum.FinalTotal,
	})
	if err != nil {
		return commerce.PaymentToken{}, fmt.Errorf("create payment: %w", err)
	}
	if err := svc.Ledger.RecordToken(ctx, s.txUUID, s.userID, tok.Token, tok.RedirectURL, sum.FinalTotal); err != nil {
		svc.Log.Warn("record payment token failed", zap.String("transaction_uuid", s.txUUID), zap.Error(err))
	}
	return tok, nil
}

// OutcomeResult tells the caller what to show after a gateway callback.
type OutcomeResult struct {
	State    State          `json:"state"`
	Notice   *events.Notice `json:"notice,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
}

func ThankYouPath(txUUID string) string { return "/thank-you/" + txUUID }

func (s *Session) expectOutcomeLocked() error {
	if s.state == StatePaymentInFlight || s.state == StatePaymentPending {
		return nil
	}
	return ErrInvalidOutcome
}

// OnSuccess finalizes points accrual. A finalization failure is reported but
// the payment still counts as succeeded.
func (s *Session) OnSuccess(ctx context.Context) (OutcomeResult, error) {
	s.mu.Lock()
	if s.state == StatePaymentSucceeded {
		s.mu.Unlock()
		return OutcomeResult{State: StatePaymentSucceeded, Redirect: ThankYouPath(s.txUUID)}, nil
	}
	if err := s.expectOutcomeLocked(); err != nil {
		s.mu.Unlock()
		return OutcomeResult{State: s.state}, err
	}
	s.transition(StatePaymentSucceeded)
	s.mu.Unlock()

	s.recordOutcome(ctx, OutcomeSuccess)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.svc.PaymentTimeout)
	defer cancel()
	if err := s.svc.Backend.ProcessPoints(pctx, s.txUUID); err != nil {
		s.svc.Log.Error("points finalization failed", zap.String("transaction_uuid", s.txUUID), zap.Error(err))
		s.notify(ctx, events.EventPointsFinalizeFailed, events.LevelWarning, "Poin akan diproses kemudian",
			map[string]any{"error": err.Error()})
	}
	n := s.notify(ctx, events.EventPaymentSucceeded, events.LevelInfo, "Pembayaran berhasil", nil)
	s.svc.Finish(s.txUUID)
	return OutcomeResult{State: StatePaymentSucceeded, Notice: &n, Redirect: ThankYouPath(s.txUUID)}, nil
}

func (s *Session) OnPending(ctx context.Context) (OutcomeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectOutcomeLocked(); err != nil {
		return OutcomeResult{State: s.state}, err
	}
	s.transition(StatePaymentPending)
	s.recordOutcome(ctx, OutcomePending)
	n := s.notify(ctx, events.EventPaymentPending, events.LevelInfo, "Menunggu pembayaran", nil)
	s.last = &n
	return OutcomeResult{State: s.state, Notice: &n}, nil
}

// OnError and OnClose leave the transaction untouched and reopen the checkout.
func (s *Session) OnError(ctx context.Context) (OutcomeResult, error) {
	return s.reopen(ctx, StatePaymentFailed, OutcomeError, events.EventPaymentFailed, events.LevelError, "Pembayaran gagal")
}

func (s *Session) OnClose(ctx context.Context) (OutcomeResult, error) {
	return s.reopen(ctx, StatePaymentCancelled, OutcomeClose, events.EventPaymentCancelled, events.LevelWarning,
		"Anda menutup popup tanpa menyelesaikan pembayaran")
}

func (s *Session) reopen(ctx context.Context, via State, outcome, typ string, lvl events.Level, msg string) (OutcomeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectOutcomeLocked(); err != nil {
		return OutcomeResult{State: s.state}, err
	}
	s.transition(via)
	s.recordOutcome(ctx, outcome)
	n := s.notify(ctx, typ, lvl, msg, nil)
	s.last = &n
	s.transition(StateReadyToPay)
	return OutcomeResult{State: s.state, Notice: &n}, nil
}

func (s *Session) recordOutcome(ctx context.Context, outcome string) {
	if err := s.svc.Ledger.RecordOutcome(ctx, s.txUUID, outcome); err != nil {
		s.svc.Log.Warn("record outcome failed", zap.String("transaction_uuid", s.txUUID), zap.Error(err))
	}
}
