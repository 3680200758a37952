package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/discount"
	"github.com/sixstreet/storefront/internal/events"
	"github.com/sixstreet/storefront/internal/inventory"
	"github.com/sixstreet/storefront/internal/shipping"
)

var (
	ErrTransactionNotFound = errors.New("checkout: transaction not found")
	ErrForbidden           = errors.New("checkout: transaction belongs to another user")
	ErrNotPending          = errors.New("checkout: transaction is not pending")
	ErrSessionNotFound     = errors.New("checkout: no active checkout for transaction")
	ErrUnknownOutcome      = errors.New("checkout: unknown payment outcome")
)

// Backend is the subset of the Commerce Backend used by checkout.
type Backend interface {
	Transaction(ctx context.Context, txUUID string) ([]commerce.TransactionRow, error)
	Addresses(ctx context.Context, userID string) ([]commerce.Address, error)
	Membership(ctx context.Context, userID string) (commerce.Membership, error)
	Vouchers(ctx context.Context, userID string) ([]commerce.Voucher, error)
	ApplyVoucher(ctx context.Context, userID string, sixstreet bool, in commerce.VoucherApply) (commerce.VoucherResult, error)
	RedeemPoints(ctx context.Context, in commerce.PointsRedeem) error
	UpdateTransaction(ctx context.Context, txUUID string, upd commerce.TransactionUpdate) error
	CreatePayment(ctx context.Context, in commerce.PaymentRequest) (commerce.PaymentToken, error)
	ProcessPoints(ctx context.Context, txUUID string) error
}

var _ Backend = (*commerce.Client)(nil)

type ShippingResolver interface {
	Options(ctx context.Context, destination, courier string) ([]shipping.Option, error)
}

// MetaResolver fills in category and brand when transaction rows lack them.
type MetaResolver interface {
	ResolveProductGroup(ctx context.Context, groupID string) inventory.ProductMeta
}

type Service struct {
	Backend        Backend
	Shipping       ShippingResolver
	Meta           MetaResolver
	Ledger         Ledger
	Notifier       events.Notifier
	Log            *zap.Logger
	PaymentTimeout time.Duration
	Now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func (s *Service) init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = map[string]*Session{}
	}
	if s.Notifier == nil {
		s.Notifier = events.Nop{}
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Ledger == nil {
		s.Ledger = NewMemoryLedger()
	}
	if s.PaymentTimeout <= 0 {
		s.PaymentTimeout = 20 * time.Second
	}
	if s.Now == nil {
		s.Now = time.Now
	}
}

// Begin loads (or returns the live) checkout session for a pending transaction.
func (s *Service) Begin(ctx context.Context, userID, txUUID string) (*Session, error) {
	s.init()
	if sess, ok := s.lookup(txUUID); ok {
		if sess.userID != userID {
			return nil, ErrForbidden
		}
		return sess, nil
	}

	rows, err := s.Backend.Transaction(ctx, txUUID)
	if err != nil {
		if commerce.IsStatus(err, http.StatusNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrTransactionNotFound
	}
	if rows[0].UserID.String() != "" && rows[0].UserID.String() != userID {
		return nil, ErrForbidden
	}
	if !strings.EqualFold(rows[0].Status, commerce.StatusPending) {
		return nil, ErrNotPending
	}

	addrs, err := s.Backend.Addresses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	membership, err := s.Backend.Membership(ctx, userID)
	if err != nil {
		// poin opsional; checkout tetap jalan tanpa poin
		s.Log.Warn("membership unavailable", zap.String("user_id", userID), zap.Error(err))
		membership = commerce.Membership{}
	}
	vouchers, err := s.Backend.Vouchers(ctx, userID)
	if err != nil {
		s.Log.Warn("vouchers unavailable", zap.String("user_id", userID), zap.Error(err))
		vouchers = nil
	}
	rec, _, err := s.Ledger.Get(ctx, txUUID)
	if err != nil {
		return nil, fmt.Errorf("load payment ledger: %w", err)
	}

	sess := &Session{
		svc:        s,
		userID:     userID,
		txUUID:     txUUID,
		state:      StateLoading,
		rows:       rows,
		addresses:  addrs,
		membership: membership,
		vouchers:   vouchers,
		redeemed:   rec.PointsRedeemed,
		points:     rec.PointsRedeemed,
		voucher:    discount.Applier{Now: s.Now},
	}
	sess.category, sess.flagged = s.productCategory(ctx, rows)
	sess.transition(StateAddressSelection)
	if len(addrs) == 0 {
		s.Notifier.Notify(ctx, events.Notice{
			Type:            events.EventAddressMissing,
			Level:           events.LevelWarning,
			UserID:          userID,
			TransactionUUID: txUUID,
			Message:         "Tambahkan alamat pengiriman terlebih dahulu",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[txUUID]; ok {
		return existing, nil
	}
	s.sessions[txUUID] = sess
	return sess, nil
}

// productCategory uses the first line; rows missing category or brand are
// resolved through the inventory.
func (s *Service) productCategory(ctx context.Context, rows []commerce.TransactionRow) (string, bool) {
	r := rows[0]
	category, brand := strings.ToLower(r.Category), strings.ToLower(r.Brand)
	if (category == "" || brand == "") && s.Meta != nil && r.ProductGroupID != "" {
		m := s.Meta.ResolveProductGroup(ctx, r.ProductGroupID.String())
		if category == "" {
			category = m.Category
		}
		if brand == "" {
			brand = m.Brand
		}
	}
	return category, brand == discount.CategorySixstreet || category == discount.CategorySixstreet
}

func (s *Service) lookup(txUUID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[txUUID]
	return sess, ok
}

// Session returns the live session if it belongs to userID.
func (s *Service) Session(userID, txUUID string) (*Session, error) {
	s.init()
	sess, ok := s.lookup(txUUID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.userID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// Finish drops a session once payment succeeded.
func (s *Service) Finish(txUUID string) {
	s.mu.Lock()
	delete(s.sessions, txUUID)
	s.mu.Unlock()
}

const (
	OutcomeSuccess = "success"
	OutcomePending = "pending"
	OutcomeError   = "error"
	OutcomeClose   = "close"
)

// ApplyOutcome routes a gateway callback to the transaction's session.
func (s *Service) ApplyOutcome(ctx context.Context, txUUID, outcome string) (OutcomeResult, error) {
	s.init()
	sess, ok := s.lookup(txUUID)
	if !ok {
		return OutcomeResult{}, ErrSessionNotFound
	}
	switch strings.ToLower(outcome) {
	case OutcomeSuccess:
		return sess.OnSuccess(ctx)
	case OutcomePending:
		return sess.OnPending(ctx)
	case OutcomeError:
		return sess.OnError(ctx)
	case OutcomeClose:
		return sess.OnClose(ctx)
	}
	return OutcomeResult{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
}
