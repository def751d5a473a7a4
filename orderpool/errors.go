package orderpool

import "errors"

var (
	// ErrOrderInPool is returned to the client if we saw the order earlier.
	ErrOrderInPool = errors.New("order already exists in pool")
	// ErrPoolFull is returned when the pool has reached its size limit.
	ErrPoolFull = errors.New("order pool is full")
)
