package repositories

import "context"

// TxFn runs with a context bound to one transaction. Every repository call made
// with that context joins it.
type TxFn func(ctx context.Context) error

// TransactionManager runs a unit of work atomically: all of its writes commit,
// or none do. Nested ExecTx calls join the outer unit.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
