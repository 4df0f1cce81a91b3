// signcallback prints callback payload signed the way the payment gateway signs it.
// Useful to post test callbacks to a running wallet:
//
//	signcallback -s "$SUITPAY_CS" '{"idTransaction":"X","typeTransaction":"PIX","statusTransaction":"PAID_OUT"}'
//
// Payload is read from stdin when no argument given.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/pixwallet/internal/service/gateway"
)

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error while signing callback: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("signcallback", pflag.ContinueOnError)
	secret := fs.StringP("secret", "s", getenv("SUITPAY_CS"), "Gateway client secret (default from SUITPAY_CS)")
	hashOnly := fs.Bool("hash-only", false, "Print only the hash")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *secret == "" {
		return errors.New("secret is required")
	}

	var payload []byte
	switch fs.NArg() {
	case 0:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		payload = b
	case 1:
		payload = []byte(fs.Arg(0))
	default:
		return fmt.Errorf("expected one payload, got %d", fs.NArg())
	}

	if *hashOnly {
		hash, err := gateway.Sign(payload, *secret)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, hash)
		return err
	}

	signed, err := gateway.SignPayload(payload, *secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(signed))
	return err
}
