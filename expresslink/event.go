package expresslink

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// EventCode identifies an entry of the module's event queue. Codes not known
// to this package still decode; String reports them as unknown.
type EventCode int

const (
	// EventMsg: a message was received on the topic given by the parameter.
	EventMsg     EventCode = 1
	EventStartup EventCode = 2
	EventConLost EventCode = 3
	EventOverrun EventCode = 4
	EventOTA     EventCode = 5
	// EventConnect: the parameter is the connection hint, 0 on success.
	EventConnect  EventCode = 6
	EventConfMode EventCode = 7
	EventSubAck   EventCode = 8
	EventSubNack  EventCode = 9

	// Shadow events carry the shadow index as parameter.
	EventShadowInit       EventCode = 20
	EventShadowInitFailed EventCode = 21
	EventShadowDoc        EventCode = 22
	EventShadowUpdate     EventCode = 23
	EventShadowDelta      EventCode = 24
	EventShadowDelete     EventCode = 25
	EventShadowSubAck     EventCode = 26
	EventShadowSubNack    EventCode = 27
)

var eventNames = map[EventCode]string{
	EventMsg:              "MSG",
	EventStartup:          "STARTUP",
	EventConLost:          "CONLOST",
	EventOverrun:          "OVERRUN",
	EventOTA:              "OTA",
	EventConnect:          "CONNECT",
	EventConfMode:         "CONFMODE",
	EventSubAck:           "SUBACK",
	EventSubNack:          "SUBNACK",
	EventShadowInit:       "SHADOW_INIT",
	EventShadowInitFailed: "SHADOW_INIT_FAILED",
	EventShadowDoc:        "SHADOW_DOC",
	EventShadowUpdate:     "SHADOW_UPDATE",
	EventShadowDelta:      "SHADOW_DELTA",
	EventShadowDelete:     "SHADOW_DELETE",
	EventShadowSubAck:     "SHADOW_SUBACK",
	EventShadowSubNack:    "SHADOW_SUBNACK",
}

func (c EventCode) String() string {
	if name, ok := eventNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown code %d", int(c))
}

// Known reports whether c is one of the documented event codes.
func (c EventCode) Known() bool {
	_, ok := eventNames[c]
	return ok
}

// Event is one decoded event queue entry.
type Event struct {
	ID        EventCode
	Parameter int
	Mnemonic  string
	// Detail is the optional remainder of the record, empty when absent.
	Detail string
}

// eventPattern matches "{id} {parameter} {mnemonic}[ {detail}]".
var eventPattern = regexp.MustCompile(`^(\d+) (\d+) (\S+)(?: (.+))?$`)

// ParseEvent decodes the payload of an EVENT? response.
func ParseEvent(payload string) (Event, error) {
	m := eventPattern.FindStringSubmatch(payload)
	if m == nil {
		return Event{}, &EventFormatError{Payload: payload}
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Event{}, &EventFormatError{Payload: payload}
	}
	param, err := strconv.Atoi(m[2])
	if err != nil {
		return Event{}, &EventFormatError{Payload: payload}
	}
	return Event{
		ID:        EventCode(id),
		Parameter: param,
		Mnemonic:  m[3],
		Detail:    m[4],
	}, nil
}

// PollEvent takes the next entry from the module's event queue. It returns
// nil without error when the queue is empty.
//
// When an event line is wired and not asserted, the queue is known to be
// empty and no command is sent.
func (el *ExpressLink) PollEvent(ctx context.Context) (*Event, error) {
	pin := el.config.eventPin
	if pin != nil {
		high, err := pin.High()
		if err != nil {
			return nil, fmt.Errorf("read event line: %w", err)
		}
		if !high {
			return nil, nil
		}
	}

	resp, err := el.Execute(ctx, "EVENT?")
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Payload == "" {
		return nil, nil
	}

	// Debounced inputs need several samples before they settle on the new
	// level.
	if r, ok := pin.(Refresher); ok {
		for range 3 {
			r.Update()
		}
	}

	ev, err := ParseEvent(resp.Payload)
	if err != nil {
		return nil, err
	}
	el.logger.Debug("Event received", "id", ev.ID, "parameter", ev.Parameter, "mnemonic", ev.Mnemonic)
	if h := el.config.hooks.OnEvent; h != nil {
		h(ev)
	}
	return &ev, nil
}
