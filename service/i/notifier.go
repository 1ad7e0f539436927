package i

import dmn "github.com/beka-birhanu/vinom-wager/domain"

// Notifier delivers named events to realtime connections.
type Notifier interface {
	Send(event string, payload interface{}, to ...dmn.ConnectionHandle)
}
