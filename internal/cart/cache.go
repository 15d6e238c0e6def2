package cart

import (
	"context"
	"errors"
)

// CartCache persists cart snapshots across process restarts. It is optional;
// a nil cache simply means carts live only as long as the process.
type CartCache interface {
	Get(ctx context.Context, customerID int) (*Cart, error)
	Set(ctx context.Context, customerID int, c *Cart) error
	Delete(ctx context.Context, customerID int) error
}

var ErrCacheMiss = errors.New("cache miss")
