package expresslink

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/expresslink/at"
)

// Message is a message taken from one of the module's receive queues.
type Message struct {
	Topic   string
	Payload string
}

// Subscribe stores name as Topic{index} and subscribes to it.
func (el *ExpressLink) Subscribe(ctx context.Context, index int, name string) error {
	if err := el.conf.SetTopic(ctx, index, name); err != nil {
		return err
	}
	return el.do(ctx, fmt.Sprintf("SUBSCRIBE%d", index))
}

func (el *ExpressLink) Unsubscribe(ctx context.Context, index int) error {
	return el.do(ctx, fmt.Sprintf("UNSUBSCRIBE%d", index))
}

// UnsubscribeName unsubscribes from a topic known to the local topic cache.
func (el *ExpressLink) UnsubscribeName(ctx context.Context, name string) error {
	index, err := el.conf.TopicIndex(name)
	if err != nil {
		return err
	}
	return el.Unsubscribe(ctx, index)
}

// GetMessage takes the next message received on Topic{index}. It returns nil
// without error when none is pending. The topic name is filled in from the
// local topic cache.
func (el *ExpressLink) GetMessage(ctx context.Context, index int) (*Message, error) {
	if index <= 0 {
		return el.NextMessage(ctx)
	}
	payload, err := el.Cmd(ctx, fmt.Sprintf("GET%d", index))
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, nil
	}
	return &Message{Topic: el.conf.Topics()[index], Payload: payload}, nil
}

// NextMessage takes the next message from any topic, including topics that
// were not assigned an index. It returns nil without error when none is
// pending.
func (el *ExpressLink) NextMessage(ctx context.Context) (*Message, error) {
	payload, err := el.Cmd(ctx, "GET")
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, nil
	}
	topic, body, _ := strings.Cut(payload, at.LF)
	return &Message{Topic: topic, Payload: body}, nil
}

// Publish sends a message on Topic{index}.
func (el *ExpressLink) Publish(ctx context.Context, index int, message string) error {
	if message == "" {
		return ErrEmptyMessage
	}
	return el.do(ctx, fmt.Sprintf("SEND%d %s", index, message))
}

// PublishName sends a message on a topic known to the local topic cache.
func (el *ExpressLink) PublishName(ctx context.Context, name, message string) error {
	index, err := el.conf.TopicIndex(name)
	if err != nil {
		return err
	}
	return el.Publish(ctx, index, message)
}
