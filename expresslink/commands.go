package expresslink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultConfModeParams is sent by ConfMode when no parameters are given.
const DefaultConfModeParams = "AWS-IoT-ExpressLink"

// do runs a command whose payload carries no information.
func (el *ExpressLink) do(ctx context.Context, command string) error {
	_, err := el.Cmd(ctx, command)
	return err
}

// Connect joins the network and connects to AWS IoT Core. A blocking connect
// can take several seconds; the non-blocking form returns at once and reports
// completion as an EventConnect.
func (el *ExpressLink) Connect(ctx context.Context, nonBlocking bool) (string, error) {
	cmd := "CONNECT"
	if nonBlocking {
		cmd += "!"
	} else {
		el.logger.Info("ExpressLink connecting to the AWS Cloud")
	}
	return el.Cmd(ctx, cmd)
}

func (el *ExpressLink) Disconnect(ctx context.Context) error {
	return el.do(ctx, "DISCONNECT")
}

// Sleep puts the module in a power saving mode for the given number of
// seconds. The mode is module specific; an empty mode selects the default.
func (el *ExpressLink) Sleep(ctx context.Context, seconds int, mode string) error {
	return el.do(ctx, fmt.Sprintf("SLEEP%s %d", mode, seconds))
}

// Reset reboots the module. When a reset line is wired it is pulsed first, as
// the command channel itself may be stuck.
func (el *ExpressLink) Reset(ctx context.Context) error {
	el.mu.Lock()
	defer el.unlock()

	if el.closed {
		return ErrAlreadyClosed
	}
	if err := el.pulseReset(ctx); err != nil {
		return fmt.Errorf("reset module: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("command %q not sent: %w", "RESET", err)
	}
	resp, err := el.execute("RESET")
	if err != nil {
		return err
	}
	return resp.Err()
}

func (el *ExpressLink) FactoryReset(ctx context.Context) error {
	return el.do(ctx, "FACTORY_RESET")
}

// ConfMode enters the module's configuration mode. An empty params uses
// DefaultConfModeParams.
func (el *ExpressLink) ConfMode(ctx context.Context, params string) error {
	if params == "" {
		params = DefaultConfModeParams
	}
	return el.do(ctx, "CONFMODE "+params)
}

// ConnectionStatus is the decoded CONNECT? response.
type ConnectionStatus struct {
	Connected bool
	// Onboarded is set once the module uses the customer account rather
	// than the staging account.
	Onboarded bool
	// Detail is the remainder of the response, such as "CONNECTED CUSTOMER".
	Detail string
}

func (el *ExpressLink) ConnectionStatus(ctx context.Context) (ConnectionStatus, error) {
	payload, err := el.Cmd(ctx, "CONNECT?")
	if err != nil {
		return ConnectionStatus{}, err
	}
	return parseConnectionStatus(payload), nil
}

func parseConnectionStatus(payload string) ConnectionStatus {
	f := strings.SplitN(payload, " ", 3)
	st := ConnectionStatus{
		Connected: f[0] == "1",
		Onboarded: len(f) > 1 && f[1] == "1",
	}
	if len(f) > 2 {
		st.Detail = f[2]
	}
	return st
}

// Connected reports whether the module is connected to AWS IoT Core.
func (el *ExpressLink) Connected(ctx context.Context) (bool, error) {
	st, err := el.ConnectionStatus(ctx)
	return st.Connected, err
}

// Onboarded reports whether the module is onboarded to the customer account.
func (el *ExpressLink) Onboarded(ctx context.Context) (bool, error) {
	st, err := el.ConnectionStatus(ctx)
	return st.Onboarded, err
}

// ModuleTime is the decoded TIME? response.
type ModuleTime struct {
	Time   time.Time
	Source string
}

const timeLayout = "date 2006/01/02 time 15:04:05.00"

// Time returns the module's clock. It returns nil without error when the
// module has no valid time yet.
func (el *ExpressLink) Time(ctx context.Context) (*ModuleTime, error) {
	payload, err := el.Cmd(ctx, "TIME?")
	if err != nil {
		return nil, err
	}
	return parseModuleTime(payload)
}

func parseModuleTime(payload string) (*ModuleTime, error) {
	if !strings.HasPrefix(payload, "date") {
		return nil, nil
	}
	if len(payload) < len(timeLayout) {
		return nil, fmt.Errorf("parse time %q: too short", payload)
	}
	t, err := time.Parse(timeLayout, payload[:len(timeLayout)])
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", payload, err)
	}
	return &ModuleTime{Time: t, Source: strings.TrimSpace(payload[len(timeLayout):])}, nil
}

// Where returns the module's location line,
// "{date} {time} {lat} {long} {elev} {accuracy} {source}", or "" when no fix
// is available.
func (el *ExpressLink) Where(ctx context.Context) (string, error) {
	payload, err := el.Cmd(ctx, "WHERE?")
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(payload, "date") {
		return "", nil
	}
	return payload, nil
}

// InfoKeys are the dictionary keys reported by Info, in order.
var InfoKeys = []string{
	KeyAbout,
	KeyVersion,
	KeyTechSpec,
	KeyThingName,
	KeyCustomName,
	KeyEndpoint,
	KeySSID,
	KeyCertificate,
}

// Info collects the identification keys of the module. Keys the module
// rejects are left out and reported in the joined error.
func (el *ExpressLink) Info(ctx context.Context) (map[string]string, error) {
	info := make(map[string]string, len(InfoKeys))
	var errs []error
	for _, key := range InfoKeys {
		v, err := el.conf.Get(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return info, err
			}
			errs = append(errs, err)
			continue
		}
		info[key] = v
	}
	return info, errors.Join(errs...)
}

func indexSuffix(index int) string {
	if index <= 0 {
		return ""
	}
	return strconv.Itoa(index)
}
