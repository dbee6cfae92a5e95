// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"context"
	"time"
)

// WithTimeout composes an optional per-request timeout with ctx's own
// deadline/cancellation: whichever fires first wins, and the returned
// cancel must always be called. This is the Go analogue of composing
// AbortSignal.timeout(ms) with a caller-supplied signal.
func WithTimeout(ctx context.Context, timeoutMS int) (context.Context, context.CancelFunc) {
	if timeoutMS <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
}
