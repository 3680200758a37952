package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategorySixstreet marks brand-exclusive vouchers and products.
const CategorySixstreet = "sixstreet"

// PointUnitValue is the rupiah value of one loyalty point.
const PointUnitValue int64 = 1000

var (
	ErrVoucherUsed    = errors.New("voucher sudah digunakan")
	ErrVoucherExpired = errors.New("voucher sudah kedaluwarsa")
)

type Voucher struct {
	Code               string
	DiscountPercentage int
	ApplicableProducts string
	ValidUntil         time.Time // zero means no expiry
	IsUsed             bool
}

func (v Voucher) Sixstreet() bool {
	return normalize(v.ApplicableProducts) == CategorySixstreet
}

// EligibilityError names the product category the voucher requires.
type EligibilityError struct {
	Code     string
	Required string
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("voucher %s hanya berlaku untuk produk %s", e.Code, e.Required)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// CheckEligibility applies the category rule, then used/expired checks.
func CheckEligibility(v Voucher, productCategory string, flaggedBrand bool) error {
	return CheckEligibilityAt(v, productCategory, flaggedBrand, time.Now())
}

// CheckEligibilityAt: a sixstreet voucher applies only to flagged-brand
// products, any other voucher only to non-flagged products of its category.
func CheckEligibilityAt(v Voucher, productCategory string, flaggedBrand bool, now time.Time) error {
	want := normalize(v.ApplicableProducts)
	switch {
	case flaggedBrand && want != CategorySixstreet:
		return &EligibilityError{Code: v.Code, Required: want}
	case !flaggedBrand && want == CategorySixstreet:
		return &EligibilityError{Code: v.Code, Required: CategorySixstreet}
	case !flaggedBrand && want != normalize(productCategory):
		return &EligibilityError{Code: v.Code, Required: want}
	}
	if v.IsUsed {
		return ErrVoucherUsed
	}
	if !v.ValidUntil.IsZero() && now.After(v.ValidUntil) {
		return ErrVoucherExpired
	}
	return nil
}

// PercentageOf returns floor(amount * pct / 100); pct is clamped to [0, 100].
func PercentageOf(amount int64, pct int) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}

// ClampPoints bounds a points request to [0, available].
func ClampPoints(available, requested int) int {
	if available < 0 {
		available = 0
	}
	if requested < 0 {
		return 0
	}
	if requested > available {
		return available
	}
	return requested
}

func PointsValue(points int) int64 { return int64(points) * PointUnitValue }

// FinalTotal is subtotal + shipping - voucher - points value, floored at 0.
func FinalTotal(subtotal, shipping, voucherDiscount int64, pointsUsed int) int64 {
	t := subtotal + shipping - voucherDiscount - PointsValue(pointsUsed)
	if t < 0 {
		return 0
	}
	return t
}
