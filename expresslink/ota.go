package expresslink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// OTACode is the state reported by OTA?.
type OTACode int

const (
	OTANone                  OTACode = 0
	OTAUpdateProposed        OTACode = 1
	OTAHostUpdateProposed    OTACode = 2
	OTAInProgress            OTACode = 3
	OTAExpressLinkImageReady OTACode = 4
	OTAHostImageReady        OTACode = 5
)

func (c OTACode) String() string {
	switch c {
	case OTANone:
		return "no OTA in progress"
	case OTAUpdateProposed:
		return "update proposed"
	case OTAHostUpdateProposed:
		return "host update proposed"
	case OTAInProgress:
		return "OTA in progress"
	case OTAExpressLinkImageReady:
		return "new ExpressLink image ready"
	case OTAHostImageReady:
		return "new host image ready"
	default:
		return fmt.Sprintf("unknown code %d", int(c))
	}
}

// OTAStatus is the decoded OTA? response.
type OTAStatus struct {
	Code OTACode
	// Detail is optional, typically the proposed version or file name.
	Detail string
}

func (el *ExpressLink) OTAState(ctx context.Context) (OTAStatus, error) {
	payload, err := el.Cmd(ctx, "OTA?")
	if err != nil {
		return OTAStatus{}, err
	}
	return parseOTAStatus(payload)
}

func parseOTAStatus(payload string) (OTAStatus, error) {
	code, detail, _ := strings.Cut(payload, " ")
	n, err := strconv.Atoi(code)
	if err != nil {
		return OTAStatus{}, &MalformedResponseError{Raw: payload}
	}
	return OTAStatus{Code: OTACode(n), Detail: detail}, nil
}

// OTAAccept accepts a proposed update.
func (el *ExpressLink) OTAAccept(ctx context.Context) error {
	return el.do(ctx, "OTA ACCEPT")
}

// OTARead reads up to count bytes of a host update image.
func (el *ExpressLink) OTARead(ctx context.Context, count int) (string, error) {
	return el.Cmd(ctx, fmt.Sprintf("OTA READ %d", count))
}

// OTASeek moves the read position of the host update image. A non-positive
// address rewinds to the start.
func (el *ExpressLink) OTASeek(ctx context.Context, address int) error {
	if address <= 0 {
		return el.do(ctx, "OTA SEEK")
	}
	return el.do(ctx, fmt.Sprintf("OTA SEEK %d", address))
}

// OTAClose ends a host update, applying a completed ExpressLink image.
func (el *ExpressLink) OTAClose(ctx context.Context) error {
	return el.do(ctx, "OTA CLOSE")
}

// OTAFlush discards the host update image.
func (el *ExpressLink) OTAFlush(ctx context.Context) error {
	return el.do(ctx, "OTA FLUSH")
}
