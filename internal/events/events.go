package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventCartAddFailed        = "CartAddFailed"
	EventCartRemoveFailed     = "CartRemoveFailed"
	EventCartFetchFailed      = "CartFetchFailed"
	EventCartSyncFailed       = "CartSyncFailed"
	EventCartItemPruned       = "CartItemPruned"
	EventAddressMissing       = "AddressMissing"
	EventShippingUnavailable  = "ShippingUnavailable"
	EventVoucherRejected      = "VoucherRejected"
	EventCheckoutSubmitted    = "CheckoutSubmitted"
	EventCheckoutFailed       = "CheckoutFailed"
	EventPaymentSucceeded     = "PaymentSucceeded"
	EventPaymentPending       = "PaymentPending"
	EventPaymentFailed        = "PaymentFailed"
	EventPaymentCancelled     = "PaymentCancelled"
	EventPointsFinalizeFailed = "PointsFinalizeFailed"
	EventPaymentOutcome       = "PaymentOutcome"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // user_id atau transaction_uuid
	Payload       json.RawMessage `json:"payload"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing notification condition. The UI decides how to show it.
type Notice struct {
	Type            string         `json:"type"`
	Level           Level          `json:"level"`
	UserID          string         `json:"user_id,omitempty"`
	TransactionUUID string         `json:"transaction_uuid,omitempty"`
	Message         string         `json:"message"`
	Data            map[string]any `json:"data,omitempty"`
}

// PaymentOutcomePayload is relayed from the payment gateway widget callbacks.
type PaymentOutcomePayload struct {
	TransactionUUID string `json:"transaction_uuid"`
	UserID          string `json:"user_id"`
	Outcome         string `json:"outcome"` // success | pending | error | close
	GatewayRef      string `json:"gateway_ref,omitempty"`
}

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
