// Package push delivers notifications through Expo and Firebase Cloud Messaging.
package push

import (
	"context"

	"github.com/and161185/hogar/internal/model"
)

// Result reports one Send call. Invalid tokens should be forgotten by the caller.
type Result struct {
	Sent    int
	Failed  int
	Invalid []string
	Errors  map[string]int
}

func (r *Result) fail(code string, n int) {
	if n <= 0 {
		return
	}
	r.Failed += n
	if r.Errors == nil {
		r.Errors = map[string]int{}
	}
	r.Errors[code] += n
}

// Merge adds o into r.
func (r *Result) Merge(o Result) {
	r.Sent += o.Sent
	r.Invalid = append(r.Invalid, o.Invalid...)
	r.Failed += o.Failed
	for k, v := range o.Errors {
		if r.Errors == nil {
			r.Errors = map[string]int{}
		}
		r.Errors[k] += v
	}
}

// Provider sends one message to many device tokens.
type Provider interface {
	Send(ctx context.Context, tokens []string, msg model.PushMessage) (Result, error)
}

func chunks(tokens []string, size int) [][]string {
	var out [][]string
	for size < len(tokens) {
		tokens, out = tokens[size:], append(out, tokens[:size:size])
	}
	if len(tokens) > 0 {
		out = append(out, tokens)
	}
	return out
}
