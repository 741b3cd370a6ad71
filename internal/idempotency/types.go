package idempotency

import "time"

// Record is the shape persisted in the idempotency DynamoDB table. One record
// exists per (user, client key) and points at the order it produced.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	UserID         string    `dynamodbav:"user_id"`
	OrderID        string    `dynamodbav:"order_id"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Expired reports whether the record's TTL has passed. DynamoDB removes
// expired items lazily, so reads must check.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}
