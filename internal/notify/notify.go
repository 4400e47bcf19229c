// Package notify hands committed transactions off to a remote endpoint.
// Every implementation is fire-and-forget: a failed send is reported back
// as informational text and never unwinds or blocks the local commit.
package notify

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

// Payload is the key/value body sent to the remote collector.
type Payload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// PayloadFor builds the remote payload for a committed transaction.
func PayloadFor(t core.Transaction) Payload {
	return Payload{
		Title:  t.Description,
		Body:   fmt.Sprintf("Category: %s, Type: %s, Amount: %s EUR", t.CategoryName, t.Type, t.Amount),
		UserID: 1,
	}
}

// Result is the outcome of a send, surfaced to the caller as information
// only. Err set means the remote call failed; the local state is unaffected.
type Result struct {
	Info string
	Err  error
}

// Notifier sends payloads to a remote endpoint.
type Notifier interface {
	Send(ctx context.Context, p Payload) Result
	Close() error
}

// NopNotifier is used when remote sync is disabled.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, Payload) Result {
	return Result{Info: "remote sync disabled"}
}

func (NopNotifier) Close() error { return nil }
