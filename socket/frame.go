package socket

import "encoding/json"

// EventAck is the event name of acknowledgement frames.
const EventAck = "ack"

// inbound is a client frame. Ack is set when the client expects an acknowledgement.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   *int64          `json:"ack,omitempty"`
}

// outbound is a server frame.
type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	Ack   *int64      `json:"ack,omitempty"`
}

func encode(event string, data interface{}, ack *int64) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data, Ack: ack})
}
