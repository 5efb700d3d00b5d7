package expresslink

import (
	"context"
	"fmt"
	"strings"

	"i4.energy/across/expresslink/at"
)

// SelfTest checks the UART link by sending a bare AT and expecting exactly
// OK. Each attempt is independent: a transport failure on one attempt does
// not abort the remaining ones. The channel becomes ready on the first
// success and failed once all attempts are used up.
func (el *ExpressLink) SelfTest(ctx context.Context) bool {
	el.mu.Lock()
	defer el.unlock()

	if el.closed {
		return false
	}

	el.setState(StateSelfTesting)
	for attempt := 1; attempt <= el.config.selfTestAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		el.logger.Debug("ExpressLink: performing self-test", "attempt", attempt)
		ok, err := el.selfTestOnce()
		if h := el.config.hooks.OnSelfTest; h != nil {
			el.queueHook(func() { h(attempt, ok) })
		}
		if ok {
			el.logger.Debug("ExpressLink UART self-test successful", "attempt", attempt)
			el.setState(StateReady)
			return true
		}
		if err != nil {
			el.logger.Warn("ExpressLink self-test error", "attempt", attempt, "error", err)
		}
	}
	el.setState(StateFailed)
	return false
}

func (el *ExpressLink) selfTestOnce() (bool, error) {
	if err := el.reader.discard(); err != nil {
		el.logger.Warn("Failed to discard pending input", "error", err)
	}
	if _, err := el.transport.Write([]byte(at.SelfTest + at.CRLF)); err != nil {
		return false, fmt.Errorf("write self-test: %w", err)
	}
	line, err := el.reader.readLine(true)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(line) == at.OK, nil
}

// pulseReset holds the reset line low, releases it and waits for the module
// to boot. It does nothing when no reset line is wired.
func (el *ExpressLink) pulseReset(ctx context.Context) error {
	pin := el.config.resetPin
	if pin == nil {
		return nil
	}
	el.logger.Debug("Pulsing reset line", "hold", el.config.resetHold, "boot", el.config.bootDelay)
	if err := pin.Set(false); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	if err := sleep(ctx, el.config.resetHold); err != nil {
		// Never leave the module held in reset.
		pin.Set(true)
		return err
	}
	if err := pin.Set(true); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	return sleep(ctx, el.config.bootDelay)
}

// Wake asserts the WAKE line, bringing the module out of low power sleep and
// keeping it awake. It is a no-op when no wake line is wired.
func (el *ExpressLink) Wake() error {
	if el.config.wakePin == nil {
		return nil
	}
	return el.config.wakePin.Set(false)
}

// AllowSleep releases the WAKE line so the module may enter low power sleep.
func (el *ExpressLink) AllowSleep() error {
	if el.config.wakePin == nil {
		return nil
	}
	return el.config.wakePin.Set(true)
}
