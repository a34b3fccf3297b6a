package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/pricing"
)

const (
	productCapacity = 1_000_000
	productFPR      = 0.001
	maxSnapshotSize = 64 << 20
)

// fileQuote is the priced snapshot of a single cart file.
type fileQuote struct {
	Path     string
	Items    int
	Orphaned int
	Totals   pricing.Totals
	products []string
}

// report is the result of pricing a batch of cart files.
type report struct {
	Files []fileQuote
	// DistinctProducts is an estimate: a bloom filter dedupes product ids
	// across files, so rare false positives undercount.
	DistinctProducts int
}

// quoteFiles prices every file concurrently. Results keep the order of files.
func quoteFiles(ctx context.Context, files []string, policy pricing.Policy) (*report, error) {
	results := make([]fileQuote, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(quoteFile(ctx, i, f, policy, results))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := bloom.NewWithEstimates(productCapacity, productFPR)
	distinct := 0
	for _, r := range results {
		for _, id := range r.products {
			if !seen.TestOrAddString(id) {
				distinct++
			}
		}
	}

	return &report{Files: results, DistinctProducts: distinct}, nil
}

func quoteFile(ctx context.Context, idx int, path string, policy pricing.Policy, results []fileQuote) func() error {
	return func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := readSnapshot(path)
		if err != nil {
			return err
		}
		raw, err := backend.DecodeCart(data)
		if err != nil {
			return errors.Wrapf(err, "decode %s", path)
		}

		items := cart.Normalize(raw)
		q := fileQuote{
			Path:   path,
			Items:  len(items),
			Totals: pricing.Compute(items, policy),
		}
		for _, item := range items {
			if item.Orphaned() {
				q.Orphaned++
				continue
			}
			q.products = append(q.products, item.ProductID())
		}

		slog.Debug("cart priced",
			slog.String("file", path),
			slog.Int("items", q.Items),
			slog.Int("orphaned", q.Orphaned),
		)

		results[idx] = q
		return nil
	}
}

// readSnapshot reads a cart file, decompressing it when the name ends in .gz.
func readSnapshot(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSnapshotSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(data) > maxSnapshotSize {
		return nil, errors.Errorf("%s: snapshot larger than %d bytes", path, maxSnapshotSize)
	}
	return data, nil
}

func writeText(w io.Writer, r *report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "FILE\tITEMS\tSUBTOTAL\tDISCOUNT\tDELIVERY\tTOTAL\tSAVINGS\t")
	for _, q := range r.Files {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			q.Path,
			q.Items,
			pricing.Display(q.Totals.Subtotal),
			pricing.Display(q.Totals.TotalDiscount),
			pricing.Display(q.Totals.DeliveryFee),
			pricing.Display(q.Totals.GrandTotal),
			pricing.Display(q.Totals.Savings),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d carts, ~%d distinct products\n", len(r.Files), r.DistinctProducts)
	return err
}

func writeJSON(w io.Writer, r *report) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("carts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, q := range r.Files {
					e.Obj(func(e *jx.Encoder) {
						e.Field("file", func(e *jx.Encoder) { e.Str(q.Path) })
						e.Field("items", func(e *jx.Encoder) { e.Int(q.Items) })
						e.Field("orphaned", func(e *jx.Encoder) { e.Int(q.Orphaned) })
						e.Field("subtotal", func(e *jx.Encoder) { e.Str(pricing.Display(q.Totals.Subtotal)) })
						e.Field("totalDiscount", func(e *jx.Encoder) { e.Str(pricing.Display(q.Totals.TotalDiscount)) })
						e.Field("deliveryFee", func(e *jx.Encoder) { e.Str(pricing.Display(q.Totals.DeliveryFee)) })
						e.Field("grandTotal", func(e *jx.Encoder) { e.Str(pricing.Display(q.Totals.GrandTotal)) })
						e.Field("savings", func(e *jx.Encoder) { e.Str(pricing.Display(q.Totals.Savings)) })
					})
				}
			})
		})
		e.Field("distinctProducts", func(e *jx.Encoder) { e.Int(r.DistinctProducts) })
	})

	_, err := w.Write(append(e.Bytes(), '\n'))
	return err
}
