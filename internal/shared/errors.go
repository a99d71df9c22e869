package shared

import "github.com/fieldline/fieldline/internal/platform/httpx"

// ErrDuplicateRequest is returned to clients replaying an idempotency key.
var ErrDuplicateRequest = httpx.Duplicate("request with this idempotency key was already processed")
