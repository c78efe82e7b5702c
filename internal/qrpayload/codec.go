// Package qrpayload encodes and verifies the signed, expiring tokens carried in QR codes.
//
// Wire format before the outer base64url (no padding) encoding:
//
//	event-level:  <eventID>|<expiryEpochSeconds>|<signature>
//	ticket-level: <ticketID>|<ticketCode>|<expiryEpochSeconds>|<signature>
//
// where signature is base64url(HMAC-SHA256(secret, all preceding fields joined by "|")).
package qrpayload

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/clock"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

const (
	delimiter = "|"

	eventFieldCount  = 3
	ticketFieldCount = 4

	DefaultTTL = 240 * time.Minute
)

var b64 = base64.RawURLEncoding

var (
	ErrEmptySecret  = errors.New("qr secret must not be empty")
	ErrInvalidField = errors.New("payload field is empty or contains the delimiter")
)

// Error is returned by Decode. Code is one of the QR_* result codes.
type Error struct {
	Code domain.ResultCode
}

func (e *Error) Error() string {
	return "qr payload rejected: " + string(e.Code)
}

// CodeOf extracts the result code of a decode failure, or QR_INVALID for foreign errors.
func CodeOf(err error) domain.ResultCode {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return domain.CodeInvalid
}

// Payload is either an EventPayload or a TicketPayload.
type Payload interface {
	Expiry() time.Time
	payload()
}

// EventPayload grants walk-up entry to an event.
type EventPayload struct {
	EventID   string
	ExpiresAt time.Time
}

func (p EventPayload) Expiry() time.Time { return p.ExpiresAt }
func (EventPayload) payload()            {}

// TicketPayload identifies one issued ticket.
type TicketPayload struct {
	TicketID   string
	TicketCode string
	ExpiresAt  time.Time
}

func (p TicketPayload) Expiry() time.Time { return p.ExpiresAt }
func (TicketPayload) payload()            {}

// Codec signs and verifies payloads. It is safe for concurrent use.
type Codec struct {
	secret []byte
	clock  clock.Clock
	ttl    time.Duration
}

type Option func(*Codec)

// WithTTL sets how long issued tokens stay valid. Zero means "expires this second".
func WithTTL(d time.Duration) Option {
	return func(c *Codec) {
		if d >= 0 {
			c.ttl = d
		}
	}
}

func NewCodec(secret []byte, clk clock.Clock, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		clock:  clk,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL reports the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

func (c *Codec) EncodeEvent(eventID string) (string, error) {
	return c.encode(eventID, c.expiry())
}

func (c *Codec) EncodeTicket(ticketID, ticketCode string) (string, error) {
	return c.encode(ticketID, ticketCode, c.expiry())
}

func (c *Codec) expiry() string {
	return strconv.FormatInt(c.clock.Now().Add(c.ttl).Unix(), 10)
}

func (c *Codec) encode(fields ...string) (string, error) {
	for _, f := range fields {
		if f == "" || strings.Contains(f, delimiter) {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
	}
	body := strings.Join(fields, delimiter)
	return b64.EncodeToString([]byte(body + delimiter + c.sign(body))), nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return b64.EncodeToString(mac.Sum(nil))
}

// Decode verifies token and returns its payload. Any failure yields a nil Payload
// and an *Error; the signature is checked before any field is interpreted.
func (c *Codec) Decode(token string) (Payload, error) {
	// Relayed tokens sometimes come back with standard padding.
	raw, err := b64.DecodeString(strings.TrimRight(strings.TrimSpace(token), "="))
	if err != nil {
		return nil, &Error{Code: domain.CodeInvalid}
	}

	parts := strings.Split(string(raw), delimiter)
	if len(parts) != eventFieldCount && len(parts) != ticketFieldCount {
		return nil, &Error{Code: domain.CodeFormatInvalid}
	}

	last := len(parts) - 1
	body := strings.Join(parts[:last], delimiter)
	if !hmac.Equal([]byte(c.sign(body)), []byte(parts[last])) {
		return nil, &Error{Code: domain.CodeSignatureInvalid}
	}

	exp, err := strconv.ParseInt(parts[last-1], 10, 64)
	if err != nil {
		return nil, &Error{Code: domain.CodeInvalid}
	}
	if c.clock.Now().Unix() > exp {
		return nil, &Error{Code: domain.CodeExpired}
	}
	expiresAt := time.Unix(exp, 0).UTC()

	switch len(parts) {
	case eventFieldCount:
		if parts[0] == "" {
			return nil, &Error{Code: domain.CodeInvalid}
		}
		return EventPayload{EventID: parts[0], ExpiresAt: expiresAt}, nil
	case ticketFieldCount:
		if parts[0] == "" || parts[1] == "" {
			return nil, &Error{Code: domain.CodeInvalid}
		}
		return TicketPayload{TicketID: parts[0], TicketCode: parts[1], ExpiresAt: expiresAt}, nil
	default:
		return nil, &Error{Code: domain.CodeFormatInvalid}
	}
}
