package postgres

// Transactor exposes the pool's Begin as a ports.DBTransactor. Billing
// uses it to open the debit and credit spans that take the user row lock
// before touching balances.
type Transactor struct {
	Pool
}

// NewTransactor wraps the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{Pool: pool}
}
