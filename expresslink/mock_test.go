package expresslink_test

import (
	"context"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/expresslink/expresslink"
)

type MockSequenceBuilder struct {
	transport *expresslink.MockTransport
	calls     []any
}

func NewMockSequence(transport *expresslink.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) reply(resp string) *gomock.Call {
	return b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		return copy(p, resp), nil
	})
}

// SelfTestOK answers the bare AT handshake.
func (b *MockSequenceBuilder) SelfTestOK() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte("AT\r\n")).Return(4, nil),
		b.reply("OK\r\n"),
	)
	return b
}

// SelfTestSilent lets one handshake attempt time out. The engine must be
// configured with a single poll per line.
func (b *MockSequenceBuilder) SelfTestSilent() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte("AT\r\n")).Return(4, nil),
		b.transport.EXPECT().Read(gomock.Any()).Return(0, nil),
	)
	return b
}

// SelfTestWriteError fails one handshake attempt at the transport.
func (b *MockSequenceBuilder) SelfTestWriteError(err error) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte("AT\r\n")).Return(0, err),
	)
	return b
}

// Command expects the framed command and answers it in one chunk.
func (b *MockSequenceBuilder) Command(frame, resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(frame)).Return(len(frame), nil),
		b.reply(resp),
	)
	return b
}

func (b *MockSequenceBuilder) Close() *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().Close().Return(nil))
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// fastConfig removes all waits so tests run at full speed.
func fastConfig(d expresslink.Dialer) *expresslink.ConfigBuilder {
	return expresslink.NewConfigBuilder().
		WithDialer(d).
		WithSettleDelay(-1).
		WithPollInterval(-1).
		WithMaxPolls(1).
		WithResetTiming(-1, -1)
}

func dialTo(tr expresslink.Transport) expresslink.Dialer {
	return expresslink.DialerFunc(func(context.Context) (expresslink.Transport, error) {
		return tr, nil
	})
}
