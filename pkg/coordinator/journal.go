package coordinator

import "sync"

// journalOrder keeps event log entries in transition order while posting
// them outside the transition lock. A transition takes a ticket before it
// unlocks and posts when every earlier ticket has posted.
type journalOrder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	issued uint64
	next   uint64
}

func newJournalOrder() *journalOrder {
	o := &journalOrder{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// ticket must be called while holding the transition lock.
func (o *journalOrder) ticket() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.issued
	o.issued++
	return t
}

// post waits for earlier tickets, then delivers messages. Every ticket must
// be posted, even with no messages.
func (o *journalOrder) post(t uint64, events EventLog, messages []string) {
	o.mu.Lock()
	for o.next != t {
		o.cond.Wait()
	}
	o.mu.Unlock()

	for _, message := range messages {
		events.Post(message)
	}

	o.mu.Lock()
	o.next++
	o.cond.Broadcast()
	o.mu.Unlock()
}
