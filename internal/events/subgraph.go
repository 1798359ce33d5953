package events

import "time"

// SubgraphRequestStart is emitted before the gateway dispatches one partition
// document to a subgraph.
type SubgraphRequestStart struct {
	Subgraph string
	URL      string
	Entities bool // true for an _entities(representations:...) document
}

// SubgraphRequestFinish is emitted after a partition document's round trip
// completes, successfully or not. Retried attempts each publish their own
// start/finish pair.
type SubgraphRequestFinish struct {
	Subgraph string
	URL      string
	Err      error
	Duration time.Duration
}
