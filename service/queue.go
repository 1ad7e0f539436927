package service

import (
	"container/list"
	"time"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
)

// MatchQueue is an insertion-ordered waiting list with at most one entry per address.
// It is not safe for concurrent use; the Matchmaker guards it with its state lock.
type MatchQueue struct {
	order     *list.List               // *dmn.QueueEntry values, oldest at the front
	byAddress map[string]*list.Element // address -> element in order
}

// NewMatchQueue returns an empty queue.
func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		order:     list.New(),
		byAddress: make(map[string]*list.Element),
	}
}

// Add appends req to the back of the queue. If the address is already queued its
// connection handle is replaced in place and false is returned.
func (q *MatchQueue) Add(req dmn.JoinRequest) bool {
	if el, ok := q.byAddress[req.Address]; ok {
		entry := el.Value.(*dmn.QueueEntry)
		entry.Request.Connection = req.Connection
		return false
	}

	entry := &dmn.QueueEntry{Request: req, JoinedAt: time.Now()}
	q.byAddress[req.Address] = q.order.PushBack(entry)
	return true
}

// RemoveConnection drops every entry currently bound to conn and returns them.
func (q *MatchQueue) RemoveConnection(conn dmn.ConnectionHandle) []dmn.QueueEntry {
	var removed []dmn.QueueEntry
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*dmn.QueueEntry)
		if entry.Request.Connection == conn {
			q.order.Remove(el)
			delete(q.byAddress, entry.Address())
			removed = append(removed, *entry)
		}
		el = next
	}
	return removed
}

// PopFront removes and returns the oldest entry.
func (q *MatchQueue) PopFront() (dmn.QueueEntry, bool) {
	el := q.order.Front()
	if el == nil {
		return dmn.QueueEntry{}, false
	}

	entry := q.order.Remove(el).(*dmn.QueueEntry)
	delete(q.byAddress, entry.Address())
	return *entry, true
}

// PushFront reinserts entry ahead of everyone else. If the address rejoined in the
// meantime, that newer entry is moved to the front with its newer connection kept.
func (q *MatchQueue) PushFront(entry dmn.QueueEntry) {
	if el, ok := q.byAddress[entry.Address()]; ok {
		q.order.MoveToFront(el)
		return
	}

	e := entry
	q.byAddress[entry.Address()] = q.order.PushFront(&e)
}

// Contains reports whether address is queued.
func (q *MatchQueue) Contains(address string) bool {
	_, ok := q.byAddress[address]
	return ok
}

// Connection returns the current connection bound to address.
func (q *MatchQueue) Connection(address string) (dmn.ConnectionHandle, bool) {
	el, ok := q.byAddress[address]
	if !ok {
		return dmn.ConnectionHandle{}, false
	}
	return el.Value.(*dmn.QueueEntry).Request.Connection, true
}

// Len returns the number of queued entrants.
func (q *MatchQueue) Len() int {
	return q.order.Len()
}

// Addresses returns queued addresses, oldest first.
func (q *MatchQueue) Addresses() []string {
	addrs := make([]string, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		addrs = append(addrs, el.Value.(*dmn.QueueEntry).Address())
	}
	return addrs
}
