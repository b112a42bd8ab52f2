// Package importer reads discount code batches from gzip-compressed CSV
// files.
//
// Each file holds rows of code,name,type,value,minPurchase with an optional
// header line. Files are scanned concurrently and each gets a bloom filter
// of its codes instead of an exact set. Codes the filters flag are only
// candidates: a second pass over the parsed rows confirms them exactly, so
// the exact bookkeeping is limited to the candidates. When the same code
// appears in more than one file, the first file listed wins and later
// occurrences are reported as duplicates.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/farmtocup-pos/internal/domain/discount"
	"github.com/xenking/farmtocup-pos/internal/seed"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	numColumns    = 5
)

// RowError reports a malformed row.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return e.File + ":" + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *RowError) Unwrap() error { return e.Err }

// Duplicate is a code skipped because an earlier file already defined it.
type Duplicate struct {
	Code string
	File string
	Line int
}

// Result is the outcome of reading a set of files.
type Result struct {
	Discounts  []discount.Discount
	Duplicates []Duplicate
}

type row struct {
	line int
	d    discount.Discount
}

// fileSet holds the parsed rows and code filter of a single file.
type fileSet struct {
	path   string
	rows   []row
	filter *bloom.BloomFilter
}

// newFilter sizes the per-file code filter.
var newFilter = func() *bloom.BloomFilter {
	return bloom.NewWithEstimates(bloomCapacity, bloomFPR)
}

type codeSet map[string]struct{}

func (c codeSet) has(code string) bool {
	_, ok := c[code]
	return ok
}

// confirm returns the candidates that some row actually carries.
func confirm(candidates codeSet, rows []row) codeSet {
	found := make(codeSet, len(candidates))
	for _, r := range rows {
		if candidates.has(r.d.Code) {
			found[r.d.Code] = struct{}{}
		}
	}
	return found
}

// ReadFiles reads every file concurrently and merges them in the given
// order.
func ReadFiles(ctx context.Context, paths []string) (*Result, error) {
	sets := make([]*fileSet, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			fs, err := readFile(ctx, p)
			if err != nil {
				return err
			}
			sets[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(sets), nil
}

func merge(sets []*fileSet) *Result {
	res := &Result{}
	for i, fs := range sets {
		earlier := sets[:i]

		candidates := make(codeSet)
		for _, r := range fs.rows {
			if flagged(earlier, r.d.Code) {
				candidates[r.d.Code] = struct{}{}
			}
		}
		taken := make(codeSet, len(candidates))
		if len(candidates) > 0 {
			for _, prev := range earlier {
				for code := range confirm(candidates, prev.rows) {
					taken[code] = struct{}{}
				}
			}
		}

		for _, r := range fs.rows {
			if taken.has(r.d.Code) {
				res.Duplicates = append(res.Duplicates, Duplicate{Code: r.d.Code, File: fs.path, Line: r.line})
				continue
			}
			res.Discounts = append(res.Discounts, r.d)
		}
	}
	return res
}

func flagged(sets []*fileSet, code string) bool {
	for _, fs := range sets {
		if fs.filter.TestString(code) {
			return true
		}
	}
	return false
}

func readFile(ctx context.Context, path string) (*fileSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	fs, err := read(ctx, path, gz)
	if err != nil {
		return nil, err
	}

	slog.Info("file scanned",
		slog.String("path", path),
		slog.Int("codes", len(fs.rows)),
	)
	return fs, nil
}

// read parses CSV rows from r. name identifies the source in errors.
func read(ctx context.Context, name string, r io.Reader) (*fileSet, error) {
	fs := &fileSet{path: name, filter: newFilter()}
	repeats := make(codeSet)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numColumns
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{File: name, Line: line, Err: err}
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}

		d, err := parseRow(rec)
		if err != nil {
			return nil, &RowError{File: name, Line: line, Err: err}
		}
		if fs.filter.TestOrAddString(d.Code) {
			repeats[d.Code] = struct{}{}
		}
		fs.rows = append(fs.rows, row{line: line, d: d})
	}

	if len(repeats) > 0 {
		fs.rows = dropRepeats(name, fs.rows, repeats)
	}
	return fs, nil
}

// dropRepeats keeps the first row of every code in candidates.
func dropRepeats(name string, rows []row, candidates codeSet) []row {
	seen := make(codeSet, len(candidates))
	kept := rows[:0]
	for _, r := range rows {
		if candidates.has(r.d.Code) {
			if seen.has(r.d.Code) {
				slog.Warn("duplicate code in file, keeping first",
					slog.String("path", name),
					slog.Int("line", r.line),
					slog.String("code", r.d.Code),
				)
				continue
			}
			seen[r.d.Code] = struct{}{}
		}
		kept = append(kept, r)
	}
	return kept
}

func parseRow(rec []string) (discount.Discount, error) {
	code := discount.Normalize(rec[0])
	if code == "" {
		return discount.Discount{}, errors.New("code is required")
	}
	typ := discount.Type(strings.ToLower(strings.TrimSpace(rec[2])))
	if !typ.Valid() {
		return discount.Discount{}, errors.Errorf("unknown type %q", rec[2])
	}
	value, err := decimal.NewFromString(strings.TrimSpace(rec[3]))
	if err != nil {
		return discount.Discount{}, errors.Wrap(err, "parse value")
	}
	if value.IsNegative() {
		return discount.Discount{}, errors.New("value must not be negative")
	}
	if typ == discount.Percentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return discount.Discount{}, errors.New("percentage must not exceed 100")
	}
	minPurchase := decimal.Zero
	if s := strings.TrimSpace(rec[4]); s != "" {
		if minPurchase, err = decimal.NewFromString(s); err != nil {
			return discount.Discount{}, errors.Wrap(err, "parse minPurchase")
		}
	}

	return discount.Discount{
		ID:          seed.DiscountID(code),
		Code:        code,
		Name:        strings.TrimSpace(rec[1]),
		Type:        typ,
		Value:       value,
		MinPurchase: minPurchase,
		IsActive:    true,
	}, nil
}
