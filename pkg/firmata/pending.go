package firmata

import (
	"container/list"
	"sync"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

// Result is the outcome of a Request.
type Result struct {
	Msg codec.Message
	Err error
}

// Matcher selects the message replying to a request.
type Matcher func(codec.Message) bool

// Request represents a pending command waiting for reply.
type Request struct {
	match    Matcher
	resultCh chan Result
	elem     *list.Element
	owner    *pendingList
}

// ResultChan returns the chan to retrieve the result.
// Exactly one result is delivered unless the request is cancelled.
func (r *Request) ResultChan() <-chan Result {
	return r.resultCh
}

// Cancel removes the request if it's still pending.
func (r *Request) Cancel() bool {
	if r.owner == nil {
		return false
	}
	return r.owner.remove(r)
}

// pendingList keeps requests in registration order so the oldest
// matching request is fulfilled first.
type pendingList struct {
	lock     sync.Mutex
	requests list.List
	closeErr error
}

func newRequest(match Matcher) *Request {
	return &Request{match: match, resultCh: make(chan Result, 1)}
}

// add registers r, or fails it immediately after close.
func (l *pendingList) add(r *Request) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closeErr != nil {
		r.resultCh <- Result{Err: l.closeErr}
		return false
	}
	r.owner = l
	r.elem = l.requests.PushBack(r)
	return true
}

func (l *pendingList) remove(r *Request) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if r.elem == nil {
		return false
	}
	l.requests.Remove(r.elem)
	r.elem = nil
	return true
}

// fulfill completes the first request matching msg.
func (l *pendingList) fulfill(msg codec.Message) bool {
	l.lock.Lock()
	var found *Request
	for elem := l.requests.Front(); elem != nil; elem = elem.Next() {
		if r := elem.Value.(*Request); r.match(msg) {
			l.requests.Remove(elem)
			r.elem, found = nil, r
			break
		}
	}
	l.lock.Unlock()
	if found == nil {
		return false
	}
	found.resultCh <- Result{Msg: msg}
	return true
}

// fail completes a single request with err.
func (l *pendingList) fail(r *Request, err error) {
	if l.remove(r) {
		r.resultCh <- Result{Err: err}
	}
}

// close fails all pending requests and rejects new ones with err.
func (l *pendingList) close(err error) {
	l.lock.Lock()
	l.closeErr = err
	var drained []*Request
	for elem := l.requests.Front(); elem != nil; elem = elem.Next() {
		r := elem.Value.(*Request)
		r.elem = nil
		drained = append(drained, r)
	}
	l.requests.Init()
	l.lock.Unlock()
	for _, r := range drained {
		r.resultCh <- Result{Err: err}
	}
}

func (l *pendingList) count() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.requests.Len()
}
