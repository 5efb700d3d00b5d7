package expresslink_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"i4.energy/across/expresslink/expresslink"
)

// recordingPin records the levels it is driven to.
type recordingPin struct {
	levels []bool
}

func (p *recordingPin) Set(high bool) error {
	p.levels = append(p.levels, high)
	return nil
}

// gatedPin calls onAssert the first time it is driven low while armed.
type gatedPin struct {
	armed    bool
	onAssert func()
}

func (p *gatedPin) Set(high bool) error {
	if !high && p.armed {
		p.armed = false
		p.onAssert()
	}
	return nil
}

func TestConnectionStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		reply     string
		connected bool
		onboarded bool
	}{
		// Connected follows the first field alone, even when not onboarded.
		{reply: "OK 1 0 foo bar\r\n", connected: true, onboarded: false},
		{reply: "OK 1 1 foo bar\r\n", connected: true, onboarded: true},
		{reply: "OK 0 0 DISCONNECTED STAGING\r\n", connected: false, onboarded: false},
		{reply: "OK 0\r\n", connected: false, onboarded: false},
	}
	for _, tc := range tests {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONNECT?", tc.reply)
		tt.Reply("AT+CONNECT?", tc.reply)

		connected, err := el.Connected(ctx)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.reply, err)
		}
		onboarded, err := el.Onboarded(ctx)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.reply, err)
		}
		if connected != tc.connected || onboarded != tc.onboarded {
			t.Errorf("%q: expected connected=%v onboarded=%v, got %v %v",
				tc.reply, tc.connected, tc.onboarded, connected, onboarded)
		}
	}
}

func TestTime(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+TIME?", "OK date 2022/10/30 time 09:38:34.04 SNTP\r\n")
	tt.Reply("AT+TIME?", "OK\r\n")

	mt, err := el.Time(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2022, 10, 30, 9, 38, 34, 40_000_000, time.UTC)
	if mt == nil || !mt.Time.Equal(want) || mt.Source != "SNTP" {
		t.Errorf("unexpected time: %+v", mt)
	}

	mt, err = el.Time(ctx)
	if err != nil || mt != nil {
		t.Errorf("expected no time, got %+v (%v)", mt, err)
	}
}

func TestOTAState(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+OTA?", "OK 1 v2.1.0\r\n")
	tt.Reply("AT+OTA?", "OK 0\r\n")

	st, err := el.OTAState(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Code != expresslink.OTAUpdateProposed || st.Detail != "v2.1.0" {
		t.Errorf("unexpected state: %+v", st)
	}

	st, err = el.OTAState(ctx)
	if err != nil || st.Code != expresslink.OTANone || st.Detail != "" {
		t.Errorf("unexpected state: %+v (%v)", st, err)
	}
	if s := expresslink.OTACode(9).String(); s != "unknown code 9" {
		t.Errorf("unexpected name: %s", s)
	}
}

func TestCommandFrames(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func(el *expresslink.ExpressLink) error
		frame string
	}{
		{"Connect", func(el *expresslink.ExpressLink) error { _, err := el.Connect(ctx, false); return err }, "AT+CONNECT"},
		{"Connect non-blocking", func(el *expresslink.ExpressLink) error { _, err := el.Connect(ctx, true); return err }, "AT+CONNECT!"},
		{"Disconnect", func(el *expresslink.ExpressLink) error { return el.Disconnect(ctx) }, "AT+DISCONNECT"},
		{"Sleep", func(el *expresslink.ExpressLink) error { return el.Sleep(ctx, 60, "") }, "AT+SLEEP 60"},
		{"Sleep with mode", func(el *expresslink.ExpressLink) error { return el.Sleep(ctx, 60, "2") }, "AT+SLEEP2 60"},
		{"FactoryReset", func(el *expresslink.ExpressLink) error { return el.FactoryReset(ctx) }, "AT+FACTORY_RESET"},
		{"ConfMode default", func(el *expresslink.ExpressLink) error { return el.ConfMode(ctx, "") }, "AT+CONFMODE AWS-IoT-ExpressLink"},
		{"ConfMode", func(el *expresslink.ExpressLink) error { return el.ConfMode(ctx, "MyThing") }, "AT+CONFMODE MyThing"},
		{"OTAAccept", func(el *expresslink.ExpressLink) error { return el.OTAAccept(ctx) }, "AT+OTA ACCEPT"},
		{"OTARead", func(el *expresslink.ExpressLink) error { _, err := el.OTARead(ctx, 128); return err }, "AT+OTA READ 128"},
		{"OTASeek", func(el *expresslink.ExpressLink) error { return el.OTASeek(ctx, 0) }, "AT+OTA SEEK"},
		{"OTASeek address", func(el *expresslink.ExpressLink) error { return el.OTASeek(ctx, 4096) }, "AT+OTA SEEK 4096"},
		{"OTAClose", func(el *expresslink.ExpressLink) error { return el.OTAClose(ctx) }, "AT+OTA CLOSE"},
		{"OTAFlush", func(el *expresslink.ExpressLink) error { return el.OTAFlush(ctx) }, "AT+OTA FLUSH"},
		{"Unsubscribe", func(el *expresslink.ExpressLink) error { return el.Unsubscribe(ctx, 2) }, "AT+UNSUBSCRIBE2"},
		{"Publish", func(el *expresslink.ExpressLink) error { return el.Publish(ctx, 1, `{"t":21}`) }, `AT+SEND1 {"t":21}`},
		{"ShadowInit unnamed", func(el *expresslink.ExpressLink) error { return el.ShadowInit(ctx, 0) }, "AT+SHADOW INIT"},
		{"ShadowInit", func(el *expresslink.ExpressLink) error { return el.ShadowInit(ctx, 1) }, "AT+SHADOW1 INIT"},
		{"ShadowDoc", func(el *expresslink.ExpressLink) error { return el.ShadowDoc(ctx, 1) }, "AT+SHADOW1 DOC"},
		{"ShadowGetDoc", func(el *expresslink.ExpressLink) error { _, err := el.ShadowGetDoc(ctx, 1); return err }, "AT+SHADOW1 GET DOC"},
		{"ShadowUpdate", func(el *expresslink.ExpressLink) error { return el.ShadowUpdate(ctx, 0, `{"state":{}}`) }, `AT+SHADOW UPDATE {"state":{}}`},
		{"ShadowGetUpdate", func(el *expresslink.ExpressLink) error { _, err := el.ShadowGetUpdate(ctx, 2); return err }, "AT+SHADOW2 GET UPDATE"},
		{"ShadowSubscribe", func(el *expresslink.ExpressLink) error { return el.ShadowSubscribe(ctx, 0) }, "AT+SHADOW SUBSCRIBE"},
		{"ShadowUnsubscribe", func(el *expresslink.ExpressLink) error { return el.ShadowUnsubscribe(ctx, 0) }, "AT+SHADOW UNSUBSCRIBE"},
		{"ShadowGetDelta", func(el *expresslink.ExpressLink) error { _, err := el.ShadowGetDelta(ctx, 0); return err }, "AT+SHADOW GET DELTA"},
		{"ShadowDelete", func(el *expresslink.ExpressLink) error { return el.ShadowDelete(ctx, 0) }, "AT+SHADOW DELETE"},
		{"ShadowGetDelete", func(el *expresslink.ExpressLink) error { _, err := el.ShadowGetDelete(ctx, 0); return err }, "AT+SHADOW GET DELETE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := expresslink.NewTestTransport()
			el := newLink(t, tt)
			tt.Reply(tc.frame, "OK\r\n")

			if err := tc.call(el); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			writes := tt.Writes()
			if last := writes[len(writes)-1]; last != tc.frame {
				t.Errorf("expected %q, got %q", tc.frame, last)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+CONNECT", "ERR14 UNABLE TO CONNECT Invalid Endpoint\r\n")

	_, err := el.Connect(context.Background(), false)
	var perr *expresslink.ProtocolError
	if !errors.As(err, &perr) || perr.Code != 14 {
		t.Errorf("expected ProtocolError 14, got %v", err)
	}
}

func TestMessaging(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+CONF Topic1=sensors/temp", "OK\r\n")
	tt.Reply("AT+SUBSCRIBE1", "OK\r\n")
	tt.Reply("AT+GET1", "OK {\"t\":21}\r\n")
	tt.Reply("AT+GET1", "OK\r\n")
	tt.Reply("AT+GET", "OK1 other/topic\r\n", "hello\r\n")
	tt.Reply("AT+SEND1 hi", "OK\r\n")
	tt.Reply("AT+UNSUBSCRIBE1", "OK\r\n")

	if err := el.Subscribe(ctx, 1, "sensors/temp"); err != nil {
		t.Fatalf("unexpected error from Subscribe(): %v", err)
	}

	msg, err := el.GetMessage(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error from GetMessage(): %v", err)
	}
	if msg == nil || msg.Topic != "sensors/temp" || msg.Payload != `{"t":21}` {
		t.Errorf("unexpected message: %+v", msg)
	}

	msg, err = el.GetMessage(ctx, 1)
	if err != nil || msg != nil {
		t.Errorf("expected no message, got %+v (%v)", msg, err)
	}

	msg, err = el.NextMessage(ctx)
	if err != nil {
		t.Fatalf("unexpected error from NextMessage(): %v", err)
	}
	if msg == nil || msg.Topic != "other/topic" || msg.Payload != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}

	if err := el.PublishName(ctx, "sensors/temp", "hi"); err != nil {
		t.Errorf("unexpected error from PublishName(): %v", err)
	}
	if err := el.Publish(ctx, 1, ""); !errors.Is(err, expresslink.ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if err := el.UnsubscribeName(ctx, "sensors/temp"); err != nil {
		t.Errorf("unexpected error from UnsubscribeName(): %v", err)
	}
	if err := el.UnsubscribeName(ctx, "nope"); !errors.Is(err, expresslink.ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestResetPin(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	pin := &recordingPin{}
	el := newLink(t, tt, func(b *expresslink.ConfigBuilder) {
		b.WithResetPin(pin)
	})

	if !slices.Equal(pin.levels, []bool{false, true}) {
		t.Errorf("expected reset pulse at bring-up, got %v", pin.levels)
	}

	tt.Reply("AT+RESET", "OK\r\n")
	if err := el.Reset(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(pin.levels, []bool{false, true, false, true}) {
		t.Errorf("expected second reset pulse, got %v", pin.levels)
	}
	writes := tt.Writes()
	if writes[len(writes)-1] != "AT+RESET" {
		t.Errorf("expected RESET command after the pulse, got %q", writes)
	}
}

func TestResetHoldsChannel(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	pin := &gatedPin{}
	el := newLink(t, tt, func(b *expresslink.ConfigBuilder) {
		b.WithResetPin(pin)
	})

	tt.Reply("AT+RESET", "OK\r\n")
	tt.Reply("AT+CONNECT?", "OK 1 1 CONNECTED\r\n")

	done := make(chan error, 1)
	pin.onAssert = func() {
		go func() {
			_, err := el.Execute(ctx, "CONNECT?")
			done <- err
		}()
		// Give the concurrent command a chance to slip in during the pulse.
		time.Sleep(20 * time.Millisecond)
	}
	pin.armed = true

	if err := el.Reset(ctx); err != nil {
		t.Fatalf("unexpected error from Reset(): %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Execute(): %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent Execute never completed")
	}

	writes := tt.Writes()
	if got := writes[len(writes)-2:]; !slices.Equal(got, []string{"AT+RESET", "AT+CONNECT?"}) {
		t.Errorf("expected RESET to complete before the concurrent command, got %q", writes)
	}
}

func TestResetClosed(t *testing.T) {
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	el.Close()

	if err := el.Reset(context.Background()); !errors.Is(err, expresslink.ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestWake(t *testing.T) {
	tt := expresslink.NewTestTransport()
	pin := &recordingPin{}
	el := newLink(t, tt, func(b *expresslink.ConfigBuilder) {
		b.WithWakePin(pin)
	})

	if err := el.Wake(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := el.AllowSleep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(pin.levels, []bool{false, true}) {
		t.Errorf("expected wake asserted low then released, got %v", pin.levels)
	}
}

func TestInfo(t *testing.T) {
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+CONF? About", "OK Espressif ESP32-C3\r\n")
	tt.Reply("AT+CONF? Version", "OK 2.4.1\r\n")
	tt.Reply("AT+CONF? TechSpec", "OK v1.1.2\r\n")
	tt.Reply("AT+CONF? ThingName", "OK 0123456789\r\n")
	tt.Reply("AT+CONF? CustomName", "OK\r\n")
	tt.Reply("AT+CONF? Endpoint", "OK foobar.example.com\r\n")
	tt.Reply("AT+CONF? SSID", "ERR7 INVALID KEY\r\n")
	tt.Reply("AT+CONF? Certificate pem", "OK pem CERT\r\n")

	info, err := el.Info(context.Background())
	var cerr *expresslink.ConfigError
	if !errors.As(err, &cerr) || cerr.Key != expresslink.KeySSID {
		t.Errorf("expected SSID ConfigError, got %v", err)
	}
	if info[expresslink.KeyEndpoint] != "foobar.example.com" || info[expresslink.KeyCertificate] != "CERT" {
		t.Errorf("unexpected info: %v", info)
	}
	if _, ok := info[expresslink.KeySSID]; ok {
		t.Error("rejected key must be left out")
	}
}
