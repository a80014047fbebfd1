package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/bridgeclient"
	"github.com/alovak/cardflow-bridge/internal/cardgen"
)

type fieldList models.OrderedFields

func (f *fieldList) String() string {
	parts := make([]string, 0, len(*f))
	for _, cf := range *f {
		parts = append(parts, cf.Label+"="+cf.Value)
	}
	return strings.Join(parts, ",")
}

func (f *fieldList) Set(s string) error {
	label, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(label) == "" {
		return fmt.Errorf("custom field must be Label=Value, got %q", s)
	}
	*f = append(*f, models.CustomField{Label: strings.TrimSpace(label), Value: value})
	return nil
}

var (
	flagBridge     = flag.String("bridge", "http://127.0.0.1:9090", "bridge base URL")
	flagKey        = flag.String("key", "", "processor public key")
	flagCard       = flag.String("card", "4084084084084081", "card number")
	flagGenerate   = flag.String("generate", "", "generate a Luhn-valid 16 digit card with this prefix instead of -card")
	flagExpiry     = flag.String("exp", "12/30", "card expiry MM/YY")
	flagCVV        = flag.String("cvv", "408", "card CVV")
	flagEmail      = flag.String("email", "", "customer email")
	flagAmount     = flag.String("amount", "", "amount in the smallest currency unit")
	flagAccessCode = flag.String("access-code", "", "backend-issued access code")
	flagOTP        = flag.String("otp", "123456", "response to OTP / 3-D Secure challenges")
	flagMetadata   = flag.String("metadata", "", "charge metadata as k=v,k2=v2")
	flagVerbose    = flag.Bool("verbose", false, "print full PAN (otherwise masked)")
	flagFields     fieldList
)

func main() {
	flag.Var(&flagFields, "field", "custom field Label=Value (repeatable, order kept)")
	flag.Parse()

	if *flagKey == "" {
		fail("-key is required (processor public key)")
	}
	if *flagAccessCode == "" && (*flagEmail == "" || *flagAmount == "") {
		fail("either -access-code or both -email and -amount are required")
	}

	pan := *flagCard
	if *flagGenerate != "" {
		pan = must1(cardgen.GeneratePAN(*flagGenerate, 16))
	}
	month, year := must2(splitExpiry(*flagExpiry))
	metadata := must1(parseKV(*flagMetadata))

	printPAN := cardgen.MaskPAN(pan)
	if *flagVerbose {
		printPAN = pan + "   (WARNING: printing full PAN)"
	}
	fmt.Printf("PAN: %s  EXP: %s/%s\n", printPAN, month, year)

	ctx := context.Background()
	cli := bridgeclient.New(*flagBridge, &http.Client{Timeout: 5 * time.Minute})

	must(cli.Initialize(ctx, *flagKey))
	must(cli.AddCard(ctx, models.CardDetails{
		CardNumber:  pan,
		ExpiryMonth: month,
		ExpiryYear:  year,
		CVV:         *flagCVV,
	}))

	valid := must1(cli.ValidateCard(ctx))
	brand := must1(cli.CardType(ctx))
	fmt.Printf("Card: %s valid=%t\n", brand, valid)

	if len(metadata) > 0 {
		must1(cli.PutMetadata(ctx, metadata))
	}
	if len(flagFields) > 0 {
		must1(cli.PutCustomFields(ctx, models.OrderedFields(flagFields)))
	}
	if *flagAccessCode != "" {
		must(cli.SetAccessCode(ctx, *flagAccessCode))
	}
	if *flagEmail != "" {
		must(cli.SetEmail(ctx, *flagEmail))
	}
	if *flagAmount != "" {
		must(cli.SetAmount(ctx, *flagAmount))
	}

	charge := must1(cli.Charge(ctx))
	if charge.Status == models.ChargeStatusAwaitingValidation {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		challenge, err := cli.AwaitChallenge(waitCtx, 200*time.Millisecond)
		cancel()
		must(err)

		fmt.Printf("Challenge (%s): %s %s\n", challenge.Kind, challenge.Message, challenge.URL)
		must(cli.AnswerChallenge(ctx, challenge.Reference, *flagOTP))
		charge, err = cli.Result(ctx)
		must(err)
	}

	fmt.Printf("Charged. Reference: %s (verify it on your backend before giving value)\n", charge.Reference)
}

// splitExpiry accepts MM/YY, MM/YYYY or MMYY.
func splitExpiry(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if month, year, ok := strings.Cut(s, "/"); ok {
		if month == "" || year == "" {
			return "", "", fmt.Errorf("expiry must be MM/YY, got %q", s)
		}
		return month, year, nil
	}
	if len(s) == 4 {
		return s[:2], s[2:], nil
	}
	return "", "", fmt.Errorf("expiry must be MM/YY, got %q", s)
}

func parseKV(s string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("metadata must be k=v pairs, got %q", pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func must(err error) {
	if err != nil {
		var apiErr *bridgeclient.APIError
		if errors.As(err, &apiErr) && apiErr.Reference != "" {
			fail("%v (reference %s)", err, apiErr.Reference)
		}
		fail("%v", err)
	}
}
func must1[T any](v T, err error) T {
	if err != nil {
		must(err)
	}
	return v
}
func must2[A, B any](a A, b B, err error) (A, B) {
	if err != nil {
		must(err)
	}
	return a, b
}
func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
