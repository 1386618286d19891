package observability

// Metric name prefixes
const (
	MetricPrefix = "parimutuel"
)

// Metric names
const (
	// Round metrics
	RoundsOpenedTotal   = MetricPrefix + ".rounds.opened_total"
	RoundsActive        = MetricPrefix + ".rounds.active"
	RoundsFinishedTotal = MetricPrefix + ".rounds.finished_total"

	// Wager metrics
	WagersPlacedTotal = MetricPrefix + ".wagers.placed_total"
	WagerAmount       = MetricPrefix + ".wagers.amount"

	// Points returned to members at the end of a round
	PointsCreditedTotal = MetricPrefix + ".points.credited_total"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"

	// Discord metrics
	CommandsTotal   = MetricPrefix + ".discord.commands_total"
	CommandDuration = MetricPrefix + ".discord.command_duration"
)

// Label keys
const (
	LabelType    = "type"
	LabelOutcome = "outcome"
	LabelCommand = "command"
)

// Round outcomes
const (
	OutcomeSettled  = "settled"
	OutcomeRefunded = "refunded"
	OutcomeExpired  = "expired"
)

// Credit types
const (
	CreditTypePayout = "payout"
	CreditTypeRefund = "refund"
)
