package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/events"
	"github.com/sixstreet/storefront/internal/shipping"
)

const (
	testUser = "7"
	testTx   = "5f1c7a52-8d8e-4a57-9a4b-1c1f0e0b8a11"
)

type fakeBackend struct {
	mu sync.Mutex

	rows       map[string][]commerce.TransactionRow
	addresses  []commerce.Address
	membership commerce.Membership
	vouchers   []commerce.Voucher

	voucherAmount *int64
	voucherErr    error
	redeemErr     error
	updateErr     error
	paymentErr    error
	processErr    error

	calls    []string
	updates  []commerce.TransactionUpdate
	redeems  []commerce.PointsRedeem
	payments []commerce.PaymentRequest
	tokens   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows: map[string][]commerce.TransactionRow{
			testTx: {{
				TransactionUUID: testTx,
				UserID:          testUser,
				ProductID:       "42",
				ProductGroupID:  "900",
				ProductName:     "Runner 01",
				Category:        "sneakers",
				Brand:           "nike",
				Size:            "42",
				Quantity:        1,
				Price:           1_000_000,
				Status:          commerce.StatusPending,
			}},
		},
		addresses: []commerce.Address{
			{ID: "1", Label: "Rumah", City: "Jakarta Selatan", Subdistrict: "Kebayoran Baru", SubdistrictID: "5120", Detail: "Jl. Senopati 1"},
			{ID: "2", Label: "Kantor", City: "Bandung", Subdistrict: "Coblong", SubdistrictID: "2301", Detail: "Jl. Dago 2"},
		},
		membership: commerce.Membership{AvailablePoints: 50, PointsValueIDR: 50_000},
		vouchers: []commerce.Voucher{
			{Code: "SNK10", DiscountPercentage: 10, ApplicableProducts: "sneakers"},
			{Code: "SIX20", DiscountPercentage: 20, ApplicableProducts: "sixstreet"},
		},
	}
}

func (f *fakeBackend) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Transaction(_ context.Context, txUUID string) ([]commerce.TransactionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[txUUID], nil
}

func (f *fakeBackend) Addresses(context.Context, string) ([]commerce.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addresses, nil
}

func (f *fakeBackend) Membership(context.Context, string) (commerce.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.membership, nil
}

func (f *fakeBackend) Vouchers(context.Context, string) ([]commerce.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vouchers, nil
}

func (f *fakeBackend) ApplyVoucher(_ context.Context, _ string, sixstreet bool, _ commerce.VoucherApply) (commerce.VoucherResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sixstreet {
		f.record("voucher_sixstreet")
	} else {
		f.record("voucher")
	}
	if f.voucherErr != nil {
		return commerce.VoucherResult{}, f.voucherErr
	}
	return commerce.VoucherResult{DiscountAmount: f.voucherAmount}, nil
}

func (f *fakeBackend) RedeemPoints(_ context.Context, in commerce.PointsRedeem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("redeem")
	if f.redeemErr != nil {
		return f.redeemErr
	}
	f.redeems = append(f.redeems, in)
	return nil
}

func (f *fakeBackend) UpdateTransaction(_ context.Context, _ string, upd commerce.TransactionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update")
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, upd)
	return nil
}

func (f *fakeBackend) CreatePayment(_ context.Context, in commerce.PaymentRequest) (commerce.PaymentToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("payment")
	if f.paymentErr != nil {
		return commerce.PaymentToken{}, f.paymentErr
	}
	f.payments = append(f.payments, in)
	f.tokens++
	return commerce.PaymentToken{Token: "snap-" + string(rune('0'+f.tokens))}, nil
}

func (f *fakeBackend) ProcessPoints(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("process")
	return f.processErr
}

type fakeShipping struct {
	err  error
	opts map[string][]shipping.Option
	hits []string
}

func (f *fakeShipping) Options(_ context.Context, dest, courier string) ([]shipping.Option, error) {
	f.hits = append(f.hits, dest+"/"+courier)
	if f.err != nil {
		return nil, f.err
	}
	opts, ok := f.opts[courier]
	if !ok {
		return nil, shipping.ErrUnknownCourier
	}
	return opts, nil
}

func newFakeShipping() *fakeShipping {
	return &fakeShipping{opts: map[string][]shipping.Option{
		"jne": {
			{Courier: "jne", Service: "REG", Cost: 18000, ETD: "2-3"},
			{Courier: "jne", Service: "YES", Cost: 32000, ETD: "1-1"},
		},
		"sicepat": {
			{Courier: "sicepat", Service: "BEST", Cost: 25000, ETD: shipping.DefaultETD},
		},
	}}
}

type harness struct {
	backend  *fakeBackend
	shipping *fakeShipping
	ledger   *MemoryLedger
	rec      *events.Recorder
	svc      *Service
}

func newHarness() *harness {
	h := &harness{
		backend:  newFakeBackend(),
		shipping: newFakeShipping(),
		ledger:   NewMemoryLedger(),
		rec:      &events.Recorder{},
	}
	h.svc = &Service{
		Backend:        h.backend,
		Shipping:       h.shipping,
		Ledger:         h.ledger,
		Notifier:       h.rec,
		PaymentTimeout: time.Second,
		Now:            func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

// ready walks a fresh session to ReadyToPay with address 1 and jne REG.
func (h *harness) ready(ctx context.Context) (*Session, error) {
	sess, err := h.svc.Begin(ctx, testUser, testTx)
	if err != nil {
		return nil, err
	}
	if err := sess.SelectAddress(ctx, "1"); err != nil {
		return nil, err
	}
	if err := sess.SelectCourier(ctx, "jne"); err != nil {
		return nil, err
	}
	if sess.State() != StateReadyToPay {
		return nil, errors.New("not ready: " + string(sess.State()))
	}
	return sess, nil
}
