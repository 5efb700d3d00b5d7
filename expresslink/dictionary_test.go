package expresslink_test

import (
	"context"
	"errors"
	"maps"
	"testing"

	"i4.energy/across/expresslink/expresslink"
)

func TestDictionaryGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Plain key", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF? Endpoint", "OK foobar.example.com\r\n")

		v, err := el.Conf().Get(ctx, expresslink.KeyEndpoint)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "foobar.example.com" {
			t.Errorf("unexpected value: %q", v)
		}
	})

	t.Run("PEM key", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF? Certificate pem",
			"OK3 pem\r\n",
			"-----BEGIN CERTIFICATE-----\r\n",
			"MIIB\r\n",
			"-----END CERTIFICATE-----\r\n",
		)

		v, err := el.Conf().Get(ctx, expresslink.KeyCertificate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----"
		if v != want {
			t.Errorf("expected %q, got %q", want, v)
		}
	})

	t.Run("Module error", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF? Bogus", "ERR7 INVALID KEY\r\n")

		_, err := el.Conf().Get(ctx, "Bogus")
		var cerr *expresslink.ConfigError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if cerr.Key != "Bogus" || cerr.Code != 7 || cerr.Message != "INVALID KEY" {
			t.Errorf("unexpected error fields: %+v", cerr)
		}
		var perr *expresslink.ProtocolError
		if !errors.As(err, &perr) {
			t.Errorf("expected wrapped ProtocolError, got %v", err)
		}
	})

	t.Run("Write-only key is never queried", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		writes := len(tt.Writes())

		_, err := el.Conf().Get(ctx, expresslink.KeyPassphrase)
		if !errors.Is(err, expresslink.ErrUnsupportedOperation) {
			t.Errorf("expected ErrUnsupportedOperation, got %v", err)
		}
		if len(tt.Writes()) != writes {
			t.Errorf("unexpected wire traffic: %q", tt.Writes()[writes:])
		}
	})
}

func TestDictionarySet(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes key and value", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF Passphrase=s3cret", "OK\r\n")

		if err := el.Conf().Set(ctx, expresslink.KeyPassphrase, "s3cret"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Read-only key is never written", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		writes := len(tt.Writes())

		err := el.Conf().Set(ctx, expresslink.KeyThingName, "thing")
		if !expresslink.IsUnsupported(err) {
			t.Errorf("expected ErrUnsupportedOperation, got %v", err)
		}
		if len(tt.Writes()) != writes {
			t.Errorf("unexpected wire traffic: %q", tt.Writes()[writes:])
		}
	})

	t.Run("Module error", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF QoS=3", "ERR7 INVALID PARAMETER\r\n")

		err := el.Conf().SetInt(ctx, expresslink.KeyQoS, 3)
		var cerr *expresslink.ConfigError
		if !errors.As(err, &cerr) || cerr.Code != 7 {
			t.Errorf("expected ConfigError with code 7, got %v", err)
		}
	})
}

func TestDictionaryTyped(t *testing.T) {
	ctx := context.Background()

	t.Run("Bool", func(t *testing.T) {
		tests := []struct {
			reply   string
			want    bool
			wantErr bool
		}{
			{reply: "OK 1\r\n", want: true},
			{reply: "OK 0\r\n", want: false},
			{reply: "OK yes\r\n", wantErr: true},
		}
		for _, tc := range tests {
			tt := expresslink.NewTestTransport()
			el := newLink(t, tt)
			tt.Reply("AT+CONF? EnableShadow", tc.reply)

			got, err := el.Conf().GetBool(ctx, expresslink.KeyEnableShadow)
			if tc.wantErr {
				var cerr *expresslink.ConfigError
				if !errors.As(err, &cerr) {
					t.Errorf("%q: expected ConfigError, got %v", tc.reply, err)
				}
				continue
			}
			if err != nil {
				t.Errorf("%q: unexpected error: %v", tc.reply, err)
			}
			if got != tc.want {
				t.Errorf("%q: expected %v, got %v", tc.reply, tc.want, got)
			}
		}
	})

	t.Run("SetBool", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF EnableShadow=1", "OK\r\n")
		tt.Reply("AT+CONF EnableShadow=0", "OK\r\n")

		if err := el.Conf().SetBool(ctx, expresslink.KeyEnableShadow, true); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := el.Conf().SetBool(ctx, expresslink.KeyEnableShadow, false); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Int", func(t *testing.T) {
		tt := expresslink.NewTestTransport()
		el := newLink(t, tt)
		tt.Reply("AT+CONF? DefenderPeriod", "OK 300\r\n")
		tt.Reply("AT+CONF? QoS", "OK high\r\n")

		n, err := el.Conf().GetInt(ctx, expresslink.KeyDefenderPeriod)
		if err != nil || n != 300 {
			t.Errorf("expected 300, got %d (%v)", n, err)
		}
		if _, err := el.Conf().GetInt(ctx, expresslink.KeyQoS); err == nil {
			t.Error("expected error for a non-numeric value")
		}
	})
}

func TestDictionaryTopics(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+CONF Topic1=sensors/temp", "OK\r\n")
	tt.Reply("AT+CONF? Topic2", "OK sensors/humidity\r\n")
	tt.Reply("AT+CONF Topic3=rejected", "ERR7 INVALID\r\n")

	if err := el.Conf().SetTopic(ctx, 1, "  sensors/temp "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := el.Conf().Topic(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := el.Conf().SetTopic(ctx, 3, "rejected"); err == nil {
		t.Fatal("expected error")
	}

	want := map[int]string{1: "sensors/temp", 2: "sensors/humidity"}
	if got := el.Conf().Topics(); !maps.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	el.Conf().Topics()[9] = "mutated"
	if _, ok := el.Conf().Topics()[9]; ok {
		t.Error("Topics() must return a copy")
	}

	if i, err := el.Conf().TopicIndex("sensors/humidity"); err != nil || i != 2 {
		t.Errorf("expected index 2, got %d (%v)", i, err)
	}
	if _, err := el.Conf().TopicIndex("unknown"); !errors.Is(err, expresslink.ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestDictionaryShadows(t *testing.T) {
	ctx := context.Background()
	tt := expresslink.NewTestTransport()
	el := newLink(t, tt)
	tt.Reply("AT+CONF Shadow1=config", "OK\r\n")

	if err := el.Conf().SetShadow(ctx, 1, "config"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := el.Conf().Shadows(); got[1] != "config" {
		t.Errorf("unexpected shadows: %v", got)
	}
}
