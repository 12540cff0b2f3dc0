package view

import (
	"context"
	"errors"
)

const (
	maxRouteAttempts = 10
	routeSuffix      = "-"
)

var errRouteExhausted = errors.New("could not determine a unique route")

// resolveRoute probes suggested, suggested-, suggested--, ... inside tx and
// returns the first candidate no row uses. The probe sequence is deterministic.
// Concurrent creates on the same prefix can both see a free candidate; nothing
// at the schema level prevents the duplicate.
func resolveRoute(ctx context.Context, tx Tx, suggested string) (string, error) {
	candidate := suggested
	for attempts := 0; ; {
		n, err := tx.CountRoute(ctx, candidate)
		if err != nil {
			return "", internalError("count route", err)
		}
		if n == 0 {
			return candidate, nil
		}
		attempts++
		if attempts >= maxRouteAttempts {
			return "", internalError("resolve route", errRouteExhausted)
		}
		candidate += routeSuffix
	}
}
