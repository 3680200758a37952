package events

const (
	TopicStorefrontEvents = "storefront.events"
	TopicPaymentOutcome   = "payment.outcome"
)

// Partition key = transaction uuid (atau user id), supaya urutan event per checkout terjaga.
func PartitionKey(id string) []byte { return []byte(id) }
