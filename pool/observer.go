package pool

import "github.com/uber-go/tally"

type observer struct {
	connectCounter        tally.Counter
	connectFailureCounter tally.Counter
	deathCounter          tally.Counter
	queryCounters         map[Reason]tally.Counter
}

func newObserver(scope tally.Scope) *observer {
	scope = scope.SubScope("pool")
	queries := make(map[Reason]tally.Counter, len(reasonNames))
	for r := range reasonNames {
		reason := Reason(r)
		queries[reason] = scope.Tagged(map[string]string{"result": reason.String()}).Counter("queries")
	}
	return &observer{
		connectCounter:        scope.Counter("connects"),
		connectFailureCounter: scope.Counter("connect_failures"),
		deathCounter:          scope.Counter("deaths"),
		queryCounters:         queries,
	}
}

func (o *observer) connect() {
	o.connectCounter.Inc(1)
}

func (o *observer) connectFailure() {
	o.connectFailureCounter.Inc(1)
}

func (o *observer) death() {
	o.deathCounter.Inc(1)
}

func (o *observer) query(r Reason) {
	if c, ok := o.queryCounters[r]; ok {
		c.Inc(1)
	}
}
