package reconcile

import "context"

// Queue moves tasks between the API process and the reconcile worker. The
// SQS implementation is used in deployed environments; the memory one keeps
// development single-process.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one queued task body plus its delivery bookkeeping.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}
