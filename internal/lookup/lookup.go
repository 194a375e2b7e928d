// Package lookup runs the book lookup workflow: validate, resolve, fetch the
// buyback price and assemble the response.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/buyback/internal/buyback"
	apperrors "github.com/lepinkainen/buyback/internal/errors"
	"github.com/lepinkainen/buyback/internal/googlebooks"
)

// Resolver finds book metadata for a free-text title.
type Resolver interface {
	Resolve(ctx context.Context, title string) (googlebooks.Metadata, error)
}

// PriceFetcher reads the buyback price from a product page.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, url string) buyback.Quote
}

// Query is a validated lookup request.
type Query struct {
	Title    string
	BuyPrice float64
}

// Validate checks the raw request parameters. The title is checked first.
func Validate(title, buyPrice string) (Query, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Query{}, apperrors.NewValidationError("title", apperrors.CodeMissingTitle, MsgMissingTitle)
	}

	price, err := ParseBuyPrice(buyPrice)
	if err != nil {
		return Query{}, err
	}
	return Query{Title: title, BuyPrice: price}, nil
}

// Service wires the resolver and the price fetcher together.
type Service struct {
	resolver       Resolver
	fetcher        PriceFetcher
	buybackBaseURL string
}

// NewService creates a Service. An empty base URL uses buyback.DefaultBaseURL.
func NewService(resolver Resolver, fetcher PriceFetcher, buybackBaseURL string) *Service {
	if buybackBaseURL == "" {
		buybackBaseURL = buyback.DefaultBaseURL
	}
	return &Service{
		resolver:       resolver,
		fetcher:        fetcher,
		buybackBaseURL: buybackBaseURL,
	}
}

// Lookup validates the raw parameters and runs the lookup. It never returns
// an error; failures become an ErrorResponse. Error payloads echo title as
// it was sent, untrimmed.
func (s *Service) Lookup(ctx context.Context, title, buyPrice string) Response {
	query, err := Validate(title, buyPrice)
	if err != nil {
		return errorResponse(err, title)
	}
	return s.run(ctx, query, title)
}

// Run performs the lookup for an already validated query.
func (s *Service) Run(ctx context.Context, query Query) Response {
	return s.run(ctx, query, query.Title)
}

func (s *Service) run(ctx context.Context, query Query, inputTitle string) Response {
	start := time.Now()

	meta, err := s.resolver.Resolve(ctx, query.Title)
	if err != nil {
		return errorResponse(err, inputTitle)
	}

	url := buyback.BuildURL(s.buybackBaseURL, meta.ISBN13, meta.Title, meta.Year)
	quote := s.fetcher.FetchPrice(ctx, url)

	resp := &SuccessResponse{
		Title:    meta.Title,
		ISBN:     meta.ISBN13,
		ISBN13:   meta.ISBN13,
		Year:     meta.Year,
		Buyback:  quote,
		BuyPrice: FormatBuyPrice(query.BuyPrice),
		Profit:   Profit(quote.Price, query.BuyPrice),
	}

	slog.Info("Lookup finished",
		"title", meta.Title,
		"isbn13", meta.ISBN13,
		"url", url,
		"priceFound", quote.Price != nil,
		"elapsed", time.Since(start))
	return resp
}

func errorResponse(err error, inputTitle string) *ErrorResponse {
	var (
		vErr  *apperrors.ValidationError
		nfErr *apperrors.BookNotFoundError
		uErr  *apperrors.UnsupportedBookError
	)

	switch {
	case errors.As(err, &vErr):
		return &ErrorResponse{Message: vErr.Message, Code: vErr.Code}
	case errors.As(err, &nfErr):
		return &ErrorResponse{Message: MsgBookNotFound, Code: apperrors.CodeBookNotFound, Title: inputTitle}
	case errors.As(err, &uErr):
		return &ErrorResponse{Message: MsgISBNNotFound, Code: apperrors.CodeISBNNotFound, Title: uErr.Title}
	default:
		slog.Error("Lookup failed", "title", inputTitle, "error", err)
		return &ErrorResponse{Message: MsgLookupFailed, Code: apperrors.CodeLookupFailed, Title: inputTitle}
	}
}
