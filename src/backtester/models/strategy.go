package models

// Strategy produces trading signals for one bar. OnBar receives the market
// view truncated at the current bar and the run's ledger for reading
// position state; implementations must not mutate engine state and must
// derive signals only from the view they are given, so a series truncated
// at bar t yields the same signals whether or not later bars exist.
type Strategy interface {
	Name() string
	OnBar(view *MarketView, ledger *Ledger) ([]*Signal, error)
}
