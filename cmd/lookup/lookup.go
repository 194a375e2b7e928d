// Package lookup runs a single book lookup from the command line.
package lookup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/lepinkainen/buyback/internal/datastore"
	booklookup "github.com/lepinkainen/buyback/internal/lookup"
)

// Looker runs a lookup from raw parameters.
type Looker interface {
	Lookup(ctx context.Context, title, buyPrice string) booklookup.Response
}

// Options controls output and export of a lookup.
type Options struct {
	Format string
	// Store receives the result when set.
	Store datastore.Store
}

// Run looks up title, prints the result and optionally exports it. An error
// response is printed and also returned as an error.
func Run(ctx context.Context, looker Looker, title, buyPrice string, opts Options, w io.Writer) error {
	resp := looker.Lookup(ctx, title, buyPrice)

	if err := Render(w, resp, opts.Format); err != nil {
		return err
	}

	if opts.Store != nil {
		if record, ok := Record(title, buyPrice, resp, time.Now()); ok {
			if err := export(opts.Store, record); err != nil {
				return err
			}
		}
	}

	if errResp, ok := resp.(*booklookup.ErrorResponse); ok {
		return fmt.Errorf("lookup failed: %s (%s)", errResp.Message, errResp.Code)
	}
	return nil
}

// Row is one entry of the lookups table.
type Row struct {
	Query        string
	Title        *string
	ISBN13       *string
	Year         *string
	BuybackURL   *string
	BuybackPrice *float64
	BuyPrice     float64
	Profit       *float64
	ErrorCode    *string
	LookedUpAt   time.Time
}

// Record converts a lookup response into a lookups table row. Requests that
// failed validation produce no row.
func Record(query, buyPrice string, resp booklookup.Response, at time.Time) (map[string]any, bool) {
	q, err := booklookup.Validate(query, buyPrice)
	if err != nil {
		return nil, false
	}

	row := Row{Query: q.Title, BuyPrice: q.BuyPrice, LookedUpAt: at}

	switch r := resp.(type) {
	case *booklookup.SuccessResponse:
		row.Title = &r.Title
		row.ISBN13 = &r.ISBN13
		row.Year = &r.Year
		row.BuybackURL = &r.Buyback.URL
		if r.Buyback.Price != nil {
			profit := math.Round((*r.Buyback.Price-q.BuyPrice)*100) / 100
			row.BuybackPrice = r.Buyback.Price
			row.Profit = &profit
		}
	case *booklookup.ErrorResponse:
		if r.Title != "" {
			row.Title = &r.Title
		}
		row.ErrorCode = &r.Code
	}

	return datastore.ToRecord(row, datastore.RecordOptions{}), true
}

func export(store datastore.Store, record map[string]any) error {
	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateTable(datastore.LookupsSchema); err != nil {
		return err
	}
	if err := store.BatchInsert(datastore.Database, datastore.LookupsTable, []map[string]any{record}); err != nil {
		return fmt.Errorf("failed to export lookup: %w", err)
	}

	slog.Info("Lookup exported", "table", datastore.LookupsTable)
	return nil
}
