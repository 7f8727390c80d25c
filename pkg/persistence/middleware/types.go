package middleware

import "github.com/aretw0/parley/pkg/ports"

// Middleware wraps a StateStore with additional behavior (encryption, PII masking).
type Middleware func(next ports.StateStore) ports.StateStore
