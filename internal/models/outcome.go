package models

// Outcome reports what a payment notification did to the record it resolved to.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeConflict   Outcome = "conflict"
	OutcomeUnresolved Outcome = "unresolved"
)
