package metrics

// Pre-defined engine metrics, registered on the default registry.
var (
	RoomsCreated       = DefaultRegistry.Counter("game/rooms/created")
	RoundsStarted      = DefaultRegistry.Counter("game/rounds/started")
	RoundsCompleted    = DefaultRegistry.Counter("game/rounds/completed")
	GuessesSubmitted   = DefaultRegistry.Counter("game/guesses/submitted")
	CallbacksApplied   = DefaultRegistry.Counter("oracle/callbacks/applied")
	CallbacksStale     = DefaultRegistry.Counter("oracle/callbacks/stale")
	CallbacksRejected  = DefaultRegistry.Counter("oracle/callbacks/rejected")
	DecryptionsPending = DefaultRegistry.Gauge("oracle/requests/pending")
	Deposits           = DefaultRegistry.Counter("ledger/deposits")
	PrizesDistributed  = DefaultRegistry.Counter("game/prizes/distributed")
	RefundsIssued      = DefaultRegistry.Counter("game/refunds/issued")
)
