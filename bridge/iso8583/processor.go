// Package iso8583 forwards charge authorizations to an acquirer host as ISO 8583 0100
// messages over a persistent TCP connection.
package iso8583

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/alovak/cardflow-bridge/bridge"
	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/cardcheck"
	"github.com/alovak/cardflow-bridge/internal/cardgen"
	"github.com/alovak/cardflow-bridge/internal/expiry"
	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583/network"
	"github.com/moov-io/iso8583/specs"
	"golang.org/x/exp/slog"
)

var (
	ErrNotConnected          = errors.New("not connected to acquirer")
	ErrAccessCodeUnsupported = errors.New("access code authorization is not supported by the ISO 8583 processor")
	ErrUnsupportedCurrency   = errors.New("unsupported currency")
)

// numericCurrency maps ISO 4217 alpha codes to the numeric codes field 49 carries.
var numericCurrency = map[string]string{
	"NGN": "566",
	"GHS": "936",
	"ZAR": "710",
	"KES": "404",
	"USD": "840",
}

var responseMessages = map[string]string{
	"05": "Do not honor",
	"14": "Invalid card number",
	"51": "Insufficient funds",
	"54": "Expired card",
	"57": "Transaction not permitted to cardholder",
	"61": "Exceeds withdrawal amount limit",
	"91": "Issuer unavailable",
}

const approved = "00"

type sender interface {
	Send(msg *iso8583.Message) (*iso8583.Message, error)
}

type Processor struct {
	logger      *slog.Logger
	addr        string
	sendTimeout time.Duration
	now         func() time.Time
	loc         *time.Location

	mu        sync.Mutex
	publicKey string
	stan      int
	conn      *connection.Connection
	sender    sender
}

type Option func(*Processor)

func WithSendTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.sendTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		p.loc = loc
	}
}

func NewProcessor(logger *slog.Logger, addr string, opts ...Option) *Processor {
	p := &Processor{
		logger:      logger.With(slog.String("processor", "iso8583")),
		addr:        addr,
		sendTimeout: 10 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ bridge.Processor = (*Processor)(nil)

// Connect dials the acquirer. Messages are framed with a 2-byte binary length header.
func (p *Processor) Connect() error {
	conn, err := connection.New(p.addr, specs.Spec87ASCII, readMessageLength, writeMessageLength,
		connection.SendTimeout(p.sendTimeout),
	)
	if err != nil {
		return fmt.Errorf("creating iso8583 connection: %w", err)
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("connecting to %s: %w", p.addr, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.sender = conn
	p.mu.Unlock()

	p.logger.Info("connected to acquirer", slog.String("addr", p.addr))
	return nil
}

func (p *Processor) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn, p.sender = nil, nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing iso8583 connection: %w", err)
	}
	return nil
}

func (p *Processor) Name() string {
	return "iso8583"
}

func (p *Processor) SetCredential(publicKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publicKey = publicKey
}

func (p *Processor) Validate(card models.Card) models.ValidationState {
	return cardcheck.State(card, p.now(), p.loc)
}

func (p *Processor) DetectCardType(card models.Card) string {
	return cardcheck.Brand(card.Number)
}

// Authorize sends a single 0100 and waits for the 0110. The acquirer does not ask for
// OTP / 3-D Secure on this path, so ValidationRequested is never called.
func (p *Processor) Authorize(_ context.Context, req bridge.AuthorizationRequest, cb bridge.AuthorizationCallbacks) {
	reference, err := p.authorize(req)
	if err != nil {
		p.logger.Warn("authorization failed",
			slog.String("pan", cardgen.MaskPAN(req.Card.Number)),
			slog.Any("err", err),
		)
		cb.Failure(err, reference)
		return
	}
	cb.Success(reference)
}

func (p *Processor) authorize(req bridge.AuthorizationRequest) (string, error) {
	if req.Charge.AccessCode != "" {
		return "", ErrAccessCodeUnsupported
	}

	p.mu.Lock()
	s := p.sender
	p.stan = p.stan%999999 + 1
	stan := fmt.Sprintf("%06d", p.stan)
	p.mu.Unlock()

	if s == nil {
		return "", ErrNotConnected
	}

	msg, err := buildAuthorizationRequest(req.Card, req.Charge, stan, p.now())
	if err != nil {
		return "", err
	}

	resp, err := s.Send(msg)
	if err != nil {
		return "", fmt.Errorf("sending authorization request: %w", err)
	}

	return parseAuthorizationResponse(resp, stan)
}

func buildAuthorizationRequest(card models.Card, charge models.Charge, stan string, now time.Time) (*iso8583.Message, error) {
	currency, ok := numericCurrency[strings.ToUpper(charge.Currency)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, charge.Currency)
	}
	yymm, err := expiry.YYMMFromParts(card.ExpiryMonth, card.ExpiryYear)
	if err != nil {
		return nil, fmt.Errorf("formatting expiry: %w", err)
	}

	msg := iso8583.NewMessage(specs.Spec87ASCII)
	msg.MTI("0100")

	fields := []struct {
		id    int
		value string
	}{
		{2, cardgen.NormalizePAN(card.Number)},
		{3, "000000"},
		{4, fmt.Sprintf("%012d", charge.Amount)},
		{7, now.UTC().Format("0102150405")},
		{11, stan},
		{14, yymm},
		{48, card.CVV},
		{49, currency},
	}
	for _, f := range fields {
		if err := msg.Field(f.id, f.value); err != nil {
			return nil, fmt.Errorf("setting field %d: %w", f.id, err)
		}
	}

	return msg, nil
}

// parseAuthorizationResponse returns the transaction reference: the retrieval reference
// number when the acquirer sent one, else the STAN with the approval code.
func parseAuthorizationResponse(resp *iso8583.Message, stan string) (string, error) {
	mti, err := resp.GetMTI()
	if err != nil {
		return "", fmt.Errorf("reading response MTI: %w", err)
	}
	if mti != "0110" {
		return "", fmt.Errorf("unexpected response MTI %s", mti)
	}

	code, err := resp.GetString(39)
	if err != nil {
		return "", fmt.Errorf("reading response code: %w", err)
	}

	reference, _ := resp.GetString(37)
	reference = strings.TrimSpace(reference)
	if reference == "" {
		approval, _ := resp.GetString(38)
		reference = stan
		if approval = strings.TrimSpace(approval); approval != "" {
			reference = stan + "-" + approval
		}
	}

	if code != approved {
		msg, ok := responseMessages[code]
		if !ok {
			msg = "Declined"
		}
		return reference, fmt.Errorf("%s (response code %s)", msg, code)
	}

	return reference, nil
}

func readMessageLength(r io.Reader) (int, error) {
	header := network.NewBinary2BytesHeader()
	if _, err := header.ReadFrom(r); err != nil {
		return 0, fmt.Errorf("reading message header: %w", err)
	}
	return header.Length(), nil
}

func writeMessageLength(w io.Writer, length int) (int, error) {
	header := network.NewBinary2BytesHeader()
	if err := header.SetLength(length); err != nil {
		return 0, fmt.Errorf("setting message length: %w", err)
	}
	n, err := header.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("writing message header: %w", err)
	}
	return n, nil
}
