// Command cart-quote prices exported cart snapshots offline with the same
// pricing policy the storefront serves.
//
// Each argument is a cart response body saved as .json or .json.gz. Files
// are priced concurrently and printed in argument order.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/pricing"
)

func main() {
	var (
		threshold string
		fee       string
		format    string
	)

	defaults := pricing.DefaultPolicy()
	flag.StringVar(&threshold, "free-delivery-threshold", defaults.FreeDeliveryThreshold.String(), "subtotal above which delivery is free")
	flag.StringVar(&fee, "delivery-fee", defaults.FlatDeliveryFee.String(), "flat delivery fee below the threshold")
	flag.StringVar(&format, "format", "text", "output format: text or json")
	flag.Parse()

	if flag.NArg() == 0 {
		slog.Error("at least one cart file is required")
		os.Exit(2)
	}

	policy, err := parsePolicy(threshold, fee)
	if err != nil {
		slog.Error("invalid pricing policy", slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Stdout, flag.Args(), policy, format); err != nil {
		slog.Error("cart quote failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, files []string, policy pricing.Policy, format string) error {
	results, err := quoteFiles(ctx, files, policy)
	if err != nil {
		return err
	}

	switch format {
	case "text":
		return writeText(w, results)
	case "json":
		return writeJSON(w, results)
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

func parsePolicy(threshold, fee string) (pricing.Policy, error) {
	t, err := decimal.NewFromString(threshold)
	if err != nil {
		return pricing.Policy{}, errors.Wrap(err, "parse threshold")
	}
	f, err := decimal.NewFromString(fee)
	if err != nil {
		return pricing.Policy{}, errors.Wrap(err, "parse delivery fee")
	}
	if t.IsNegative() || f.IsNegative() {
		return pricing.Policy{}, fmt.Errorf("threshold and fee must not be negative")
	}
	return pricing.Policy{FreeDeliveryThreshold: t, FlatDeliveryFee: f}, nil
}
