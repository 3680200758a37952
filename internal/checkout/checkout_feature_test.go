package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/sixstreet/storefront/internal/cart"
	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/inventory"
)

// cartBackend is a minimal Commerce Backend cart for the merge scenario.
type cartBackend struct {
	rows []commerce.CartRow
}

func (b *cartBackend) Cart(context.Context, string) ([]commerce.CartRow, error) { return b.rows, nil }

func (b *cartBackend) AddToCart(_ context.Context, _ string, in commerce.CartAdd) error {
	for i, r := range b.rows {
		if r.ProductID.String() == in.ProductID && r.Size == in.Size {
			b.rows[i].Quantity += in.Quantity
			return nil
		}
	}
	b.rows = append(b.rows, commerce.CartRow{
		ID: commerce.ID(fmt.Sprint(len(b.rows) + 1)), ProductID: commerce.ID(in.ProductID),
		ProductGroupID: commerce.ID(in.ProductGroupID), Size: in.Size, Quantity: in.Quantity, Price: in.Price,
	})
	return nil
}

func (b *cartBackend) RemoveCartItem(context.Context, string, string) error { return nil }

type foundMeta struct{}

func (foundMeta) ResolveProductGroup(_ context.Context, id string) inventory.ProductMeta {
	return inventory.ProductMeta{GroupID: id, DisplayName: "Product " + id, Found: true}
}

type checkoutTestContext struct {
	h       *harness
	sess    *Session
	cart    *cart.Store
	err     error
	voucher int64
	points  int
}

func (c *checkoutTestContext) reset() {
	if c.cart != nil {
		c.cart.Close()
	}
	c.h = newHarness()
	c.h.backend.addresses = nil
	c.h.backend.vouchers = nil
	c.h.backend.membership.AvailablePoints = 0
	c.sess, c.cart, c.err = nil, nil, nil
	c.voucher, c.points = 0, 0
}

func (c *checkoutTestContext) aPendingTransaction(user, category string, price int) error {
	rows := c.h.backend.rows[testTx]
	rows[0].UserID = commerce.ID(user)
	rows[0].Category = category
	rows[0].Price = int64(price)
	return nil
}

func (c *checkoutTestContext) noSavedAddress() error {
	c.h.backend.addresses = nil
	return nil
}

func (c *checkoutTestContext) savedAddress(id, subdistrict string) error {
	c.h.backend.addresses = append(c.h.backend.addresses, commerce.Address{
		ID: commerce.ID(id), City: "Jakarta Selatan", SubdistrictID: subdistrict, Detail: "Jl. Senopati " + id,
	})
	return nil
}

func (c *checkoutTestContext) hasVoucher(code, category string, pct int) error {
	c.h.backend.vouchers = append(c.h.backend.vouchers, commerce.Voucher{
		Code: code, ApplicableProducts: category, DiscountPercentage: pct,
	})
	return nil
}

func (c *checkoutTestContext) hasPoints(n int) error {
	c.h.backend.membership = commerce.Membership{AvailablePoints: n, PointsValueIDR: int64(n) * 1000}
	return nil
}

func (c *checkoutTestContext) opensCheckout() error {
	c.sess, c.err = c.h.svc.Begin(context.Background(), testUser, testTx)
	return c.err
}

func (c *checkoutTestContext) opensCheckoutAgain() error {
	// the live session keeps its address list; a new visit reloads it
	c.h.svc.Finish(testTx)
	return c.opensCheckout()
}

func (c *checkoutTestContext) selectsAddress(id string) error {
	return c.sess.SelectAddress(context.Background(), id)
}

func (c *checkoutTestContext) selectsCourier(courier string) error {
	return c.sess.SelectCourier(context.Background(), courier)
}

func (c *checkoutTestContext) appliesVoucher(code string) error {
	res, err := c.sess.ApplyVoucher(context.Background(), code)
	if err != nil {
		return err
	}
	c.voucher = res.DiscountAmount
	return nil
}

func (c *checkoutTestContext) requestsPoints(n int) error {
	got, err := c.sess.UsePoints(n)
	c.points = got
	return err
}

func (c *checkoutTestContext) submits() error {
	_, err := c.sess.Submit(context.Background())
	return err
}

func (c *checkoutTestContext) gatewayReports(outcome string) error {
	_, err := c.h.svc.ApplyOutcome(context.Background(), testTx, outcome)
	return err
}

func (c *checkoutTestContext) noticeEmitted(typ string) error {
	for _, t := range c.h.rec.Types() {
		if t == typ {
			return nil
		}
	}
	return fmt.Errorf("notice %q not emitted, got %v", typ, c.h.rec.Types())
}

func (c *checkoutTestContext) submitFails(what string) error {
	_, err := c.sess.Submit(context.Background())
	if err == nil {
		return errors.New("expected submit to fail")
	}
	if !strings.Contains(what, "not ready") || !errors.Is(err, ErrNotReady) {
		return fmt.Errorf("unexpected submit error: %v", err)
	}
	return nil
}

func (c *checkoutTestContext) submitSucceeds() error {
	return c.submits()
}

func (c *checkoutTestContext) checkoutIs(state string) error {
	if got := c.sess.State(); string(got) != state {
		return fmt.Errorf("state = %s, want %s", got, state)
	}
	return nil
}

func (c *checkoutTestContext) voucherDiscountIs(n int) error {
	if c.voucher != int64(n) {
		return fmt.Errorf("voucher discount = %d, want %d", c.voucher, n)
	}
	return nil
}

func (c *checkoutTestContext) finalTotalIs(n int) error {
	if got := c.sess.Summary().FinalTotal; got != int64(n) {
		return fmt.Errorf("final total = %d, want %d", got, n)
	}
	return nil
}

func (c *checkoutTestContext) pointsUsed(n int) error {
	if c.points != n || c.sess.Summary().PointsUsed != n {
		return fmt.Errorf("points used = %d, want %d", c.points, n)
	}
	return nil
}

func (c *checkoutTestContext) pointsValue(n int) error {
	if got := c.sess.Summary().PointsValue; got != int64(n) {
		return fmt.Errorf("points value = %d, want %d", got, n)
	}
	return nil
}

func (c *checkoutTestContext) transactionUpdated(n int) error {
	got := 0
	for _, call := range c.h.backend.Calls() {
		if call == "update" {
			got++
		}
	}
	if got != n {
		return fmt.Errorf("transaction updated %d times, want %d", got, n)
	}
	return nil
}

func (c *checkoutTestContext) emptyCart(user string) error {
	c.cart = cart.NewStore(user, cart.Options{Backend: &cartBackend{}, Meta: foundMeta{}})
	return nil
}

func (c *checkoutTestContext) addsToCart(product, size string, qty, price int) error {
	_, err := c.cart.Add(context.Background(), cart.Item{
		ProductID: product, ProductGroupID: "900", Size: size, Quantity: qty, Price: int64(price),
	})
	return err
}

func (c *checkoutTestContext) cartHasLines(n int) error {
	if got := len(c.cart.Snapshot()); got != n {
		return fmt.Errorf("cart has %d lines, want %d", got, n)
	}
	return nil
}

func (c *checkoutTestContext) lineHasQuantity(product, size string, qty int) error {
	for _, l := range c.cart.Snapshot() {
		if l.ProductID == product && l.Size == size {
			if l.Quantity != qty {
				return fmt.Errorf("quantity = %d, want %d", l.Quantity, qty)
			}
			return nil
		}
	}
	return fmt.Errorf("no line for %s/%s", product, size)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a pending transaction for user "([^"]*)" with a "([^"]*)" product priced (\d+)$`, tc.aPendingTransaction)
	ctx.Step(`^the user has no saved address$`, tc.noSavedAddress)
	ctx.Step(`^the user has a saved address "([^"]*)" in subdistrict "([^"]*)"$`, tc.savedAddress)
	ctx.Step(`^the user has voucher "([^"]*)" for "([^"]*)" at (\d+) percent$`, tc.hasVoucher)
	ctx.Step(`^the user has (\d+) loyalty points$`, tc.hasPoints)
	ctx.Step(`^an empty cart for user "([^"]*)"$`, tc.emptyCart)

	// When steps
	ctx.Step(`^the user opens the checkout$`, tc.opensCheckout)
	ctx.Step(`^the user opens the checkout again$`, tc.opensCheckoutAgain)
	ctx.Step(`^the user adds address "([^"]*)" in subdistrict "([^"]*)"$`, tc.savedAddress)
	ctx.Step(`^the user selects address "([^"]*)"$`, tc.selectsAddress)
	ctx.Step(`^the user selects courier "([^"]*)"$`, tc.selectsCourier)
	ctx.Step(`^the user applies voucher "([^"]*)"$`, tc.appliesVoucher)
	ctx.Step(`^the user requests to use (\d+) points$`, tc.requestsPoints)
	ctx.Step(`^the user submits the checkout$`, tc.submits)
	ctx.Step(`^the payment gateway reports "([^"]*)"$`, tc.gatewayReports)
	ctx.Step(`^the user adds product "([^"]*)" size "([^"]*)" quantity (\d+) at price (\d+)$`, tc.addsToCart)

	// Then steps
	ctx.Step(`^an? "([^"]*)" notice is emitted$`, tc.noticeEmitted)
	ctx.Step(`^submitting the checkout fails with "([^"]*)"$`, tc.submitFails)
	ctx.Step(`^submitting the checkout succeeds$`, tc.submitSucceeds)
	ctx.Step(`^the checkout is "([^"]*)"$`, tc.checkoutIs)
	ctx.Step(`^the voucher discount is (\d+)$`, tc.voucherDiscountIs)
	ctx.Step(`^the final total is (\d+)$`, tc.finalTotalIs)
	ctx.Step(`^(\d+) points are used$`, tc.pointsUsed)
	ctx.Step(`^the points value is (\d+)$`, tc.pointsValue)
	ctx.Step(`^the transaction was updated (\d+) times?$`, tc.transactionUpdated)
	ctx.Step(`^the cart has (\d+) lines?$`, tc.cartHasLines)
	ctx.Step(`^the line for product "([^"]*)" size "([^"]*)" has quantity (\d+)$`, tc.lineHasQuantity)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
