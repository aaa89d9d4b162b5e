package taskname

const (
	// Ledger tasks
	LedgerReconcile = "ledger:reconcile"
)
