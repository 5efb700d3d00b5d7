package expresslink

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
)

// Configuration dictionary keys.
const (
	KeyAbout           = "About"
	KeyVersion         = "Version"
	KeyTechSpec        = "TechSpec"
	KeyThingName       = "ThingName"
	KeyCertificate     = "Certificate"
	KeyCustomName      = "CustomName"
	KeyEndpoint        = "Endpoint"
	KeyRootCA          = "RootCA"
	KeyDefenderPeriod  = "DefenderPeriod"
	KeyHOTAcertificate = "HOTAcertificate"
	KeyOTAcertificate  = "OTAcertificate"
	KeySSID            = "SSID"
	KeyPassphrase      = "Passphrase"
	KeyAPN             = "APN"
	KeyQoS             = "QoS"
	KeyEnableShadow    = "EnableShadow"
	KeyShadowToken     = "ShadowToken"

	// Indexed keys are formed by appending the index, as in Topic1.
	KeyTopic  = "Topic"
	KeyShadow = "Shadow"
)

// pemMarker is prepended by the module to certificate payloads.
const pemMarker = "pem"

type keyAccess int

const (
	accessReadWrite keyAccess = iota
	accessReadOnly
	accessWriteOnly
)

type keyInfo struct {
	access keyAccess
	pem    bool
}

var keyTable = map[string]keyInfo{
	KeyAbout:           {access: accessReadOnly},
	KeyVersion:         {access: accessReadOnly},
	KeyTechSpec:        {access: accessReadOnly},
	KeyThingName:       {access: accessReadOnly},
	KeyCertificate:     {access: accessReadOnly, pem: true},
	KeyRootCA:          {pem: true},
	KeyHOTAcertificate: {pem: true},
	KeyOTAcertificate:  {pem: true},
	KeyPassphrase:      {access: accessWriteOnly},
}

// Dictionary reads and writes the module's configuration dictionary with
// CONF? and CONF commands. Keys are plain strings; unknown keys are passed
// through unchanged.
//
// Topic and shadow names that were read or written through the Dictionary are
// remembered locally. This cache is advisory: the module is the source of
// truth and the cache can be rebuilt by reading the keys again.
type Dictionary struct {
	el *ExpressLink

	mu      sync.Mutex
	topics  map[int]string
	shadows map[int]string
}

func newDictionary(el *ExpressLink) *Dictionary {
	return &Dictionary{
		el:      el,
		topics:  make(map[int]string),
		shadows: make(map[int]string),
	}
}

// Get sends CONF? key and returns the value. Certificate keys are queried in
// PEM form and returned without the marker the module prepends.
func (d *Dictionary) Get(ctx context.Context, key string) (string, error) {
	info := keyTable[key]
	if info.access == accessWriteOnly {
		return "", &ConfigError{Key: key, Message: "write-only key", Cause: ErrUnsupportedOperation}
	}

	query := key
	if info.pem {
		query = key + " " + pemMarker
	}
	value, err := d.exchange(ctx, key, "CONF? "+query)
	if err != nil {
		return "", err
	}
	if info.pem {
		value = strings.TrimSpace(strings.TrimPrefix(value, pemMarker))
	}
	return value, nil
}

// Set sends CONF key=value.
func (d *Dictionary) Set(ctx context.Context, key, value string) error {
	if keyTable[key].access == accessReadOnly {
		return &ConfigError{Key: key, Message: "read-only key", Cause: ErrUnsupportedOperation}
	}
	_, err := d.exchange(ctx, key, "CONF "+key+"="+value)
	return err
}

func (d *Dictionary) exchange(ctx context.Context, key, command string) (string, error) {
	resp, err := d.el.Execute(ctx, command)
	if err != nil {
		return "", &ConfigError{Key: key, Message: "command failed", Cause: err}
	}
	if !resp.OK() {
		return "", &ConfigError{Key: key, Code: resp.Code, Message: resp.Payload, Cause: resp.Err()}
	}
	return resp.Payload, nil
}

// GetInt reads an integer valued key such as DefenderPeriod or QoS.
func (d *Dictionary) GetInt(ctx context.Context, key string) (int, error) {
	v, err := d.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &ConfigError{Key: key, Message: fmt.Sprintf("not an integer: %q", v), Cause: err}
	}
	return n, nil
}

func (d *Dictionary) SetInt(ctx context.Context, key string, value int) error {
	return d.Set(ctx, key, strconv.Itoa(value))
}

// GetBool reads a flag such as EnableShadow. "0" is false and "1" is true;
// anything strconv.ParseBool rejects is an error.
func (d *Dictionary) GetBool(ctx context.Context, key string) (bool, error) {
	v, err := d.Get(ctx, key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, &ConfigError{Key: key, Message: fmt.Sprintf("not a boolean: %q", v), Cause: err}
	}
	return b, nil
}

// SetBool writes a flag as "1" or "0".
func (d *Dictionary) SetBool(ctx context.Context, key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return d.Set(ctx, key, v)
}

// Topic reads Topic{index} and remembers the name.
func (d *Dictionary) Topic(ctx context.Context, index int) (string, error) {
	return d.getIndexed(ctx, KeyTopic, index, d.topics)
}

// SetTopic writes Topic{index}. Surrounding whitespace is removed from the
// name first.
func (d *Dictionary) SetTopic(ctx context.Context, index int, name string) error {
	return d.setIndexed(ctx, KeyTopic, index, strings.TrimSpace(name), d.topics)
}

// Topics returns a copy of the locally known topic names by index.
func (d *Dictionary) Topics() map[int]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.topics)
}

// TopicIndex looks a topic name up in the local cache.
func (d *Dictionary) TopicIndex(name string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, n := range d.topics {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, ErrUnknownTopic)
}

// Shadow reads Shadow{index} and remembers the name.
func (d *Dictionary) Shadow(ctx context.Context, index int) (string, error) {
	return d.getIndexed(ctx, KeyShadow, index, d.shadows)
}

func (d *Dictionary) SetShadow(ctx context.Context, index int, name string) error {
	return d.setIndexed(ctx, KeyShadow, index, strings.TrimSpace(name), d.shadows)
}

// Shadows returns a copy of the locally known shadow names by index.
func (d *Dictionary) Shadows() map[int]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.shadows)
}

func (d *Dictionary) getIndexed(ctx context.Context, base string, index int, cache map[int]string) (string, error) {
	name, err := d.Get(ctx, base+strconv.Itoa(index))
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	cache[index] = name
	d.mu.Unlock()
	return name, nil
}

func (d *Dictionary) setIndexed(ctx context.Context, base string, index int, name string, cache map[int]string) error {
	if err := d.Set(ctx, base+strconv.Itoa(index), name); err != nil {
		return err
	}
	d.mu.Lock()
	cache[index] = name
	d.mu.Unlock()
	return nil
}

// IsUnsupported reports whether err was caused by contractual misuse of a
// key rather than by the module.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}
