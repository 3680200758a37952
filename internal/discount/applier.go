package discount

import "time"

type Result struct {
	Code           string `json:"code"`
	Percentage     int    `json:"percentage"`
	DiscountAmount int64  `json:"discount_amount"`
}

// Applier holds the single voucher of one checkout. Not safe for concurrent use;
// the owning checkout session serializes access.
type Applier struct {
	Now func() time.Time

	applied bool
	result  Result
}

// Apply validates v and computes its discount on orderAmount. While a voucher
// is applied, further eligible applies return the current result unchanged.
func (a *Applier) Apply(v Voucher, category string, flagged bool, orderAmount int64) (Result, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	if err := CheckEligibilityAt(v, category, flagged, now); err != nil {
		return Result{}, err
	}
	if a.applied {
		return a.result, nil
	}
	a.result = Result{
		Code:           v.Code,
		Percentage:     v.DiscountPercentage,
		DiscountAmount: PercentageOf(orderAmount, v.DiscountPercentage),
	}
	a.applied = true
	return a.result, nil
}

// ApplyAmount replaces the computed discount with the backend's figure.
func (a *Applier) ApplyAmount(amount int64) Result {
	if !a.applied {
		return Result{}
	}
	if amount < 0 {
		amount = 0
	}
	a.result.DiscountAmount = amount
	return a.result
}

func (a *Applier) Applied() (Result, bool) { return a.result, a.applied }

// Reset drops the applied voucher, e.g. when the backend rejected it.
func (a *Applier) Reset() {
	a.applied = false
	a.result = Result{}
}
