package checkout

type State string

const (
	StateLoading           State = "LOADING"
	StateAddressSelection  State = "ADDRESS_SELECTION"
	StateShippingSelection State = "SHIPPING_SELECTION"
	StateReadyToPay        State = "READY_TO_PAY"
	StatePaymentInFlight   State = "PAYMENT_IN_FLIGHT"
	StatePaymentSucceeded  State = "PAYMENT_SUCCEEDED"
	StatePaymentPending    State = "PAYMENT_PENDING"
	StatePaymentFailed     State = "PAYMENT_FAILED"
	StatePaymentCancelled  State = "PAYMENT_CANCELLED"
)

// voucher dan poin opsional, tidak punya state sendiri
var validNext = map[State]map[State]bool{
	StateLoading:           {StateAddressSelection: true},
	StateAddressSelection:  {StateShippingSelection: true},
	StateShippingSelection: {StateShippingSelection: true, StateReadyToPay: true},
	StateReadyToPay:        {StateShippingSelection: true, StateReadyToPay: true, StatePaymentInFlight: true},
	StatePaymentInFlight: {
		StateReadyToPay:       true, // gagal sebelum widget dibuka
		StatePaymentSucceeded: true,
		StatePaymentPending:   true,
		StatePaymentFailed:    true,
		StatePaymentCancelled: true,
	},
	StatePaymentPending: {
		StatePaymentSucceeded: true,
		StatePaymentFailed:    true,
		StatePaymentCancelled: true,
	},
	StatePaymentFailed:    {StateReadyToPay: true},
	StatePaymentCancelled: {StateReadyToPay: true},
	StatePaymentSucceeded: {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}

// selecting reports whether address/courier/voucher/points may still change.
func (s State) selecting() bool {
	switch s {
	case StateAddressSelection, StateShippingSelection, StateReadyToPay:
		return true
	}
	return false
}

func (s State) Terminal() bool { return s == StatePaymentSucceeded }
