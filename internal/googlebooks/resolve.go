package googlebooks

import (
	"context"
	"strings"

	"github.com/lepinkainen/buyback/internal/cache"
	apperrors "github.com/lepinkainen/buyback/internal/errors"
	"github.com/lepinkainen/buyback/internal/isbn"
)

const (
	unknownTitle = "Unknown"
	unknownYear  = "0000"
	cacheTable   = "googlebooks_cache"
)

// Searcher finds the best matching volume for a title
type Searcher interface {
	SearchByTitle(ctx context.Context, title string) (*Volume, error)
}

// Resolver turns a free-text title into a canonical title, ISBN-13 and year
type Resolver struct {
	searcher Searcher
	useCache bool
}

// NewResolver creates a Resolver. When useCache is set, search results
// (including empty ones) are kept in the SQLite cache.
func NewResolver(searcher Searcher, useCache bool) *Resolver {
	return &Resolver{searcher: searcher, useCache: useCache}
}

// Resolve looks the title up and derives its metadata.
// It returns a BookNotFoundError when the search is empty and an
// UnsupportedBookError when the match carries no usable ISBN.
func (r *Resolver) Resolve(ctx context.Context, title string) (Metadata, error) {
	volume, err := r.search(ctx, title)
	if err != nil {
		return Metadata{}, err
	}
	return MetadataFromVolume(volume.VolumeInfo)
}

// cachedSearch is the cache representation of a search; NotFound marks a
// negative result so empty searches are remembered too.
type cachedSearch struct {
	Volume   *Volume `json:"volume,omitempty"`
	NotFound bool    `json:"not_found"`
}

func (r *Resolver) search(ctx context.Context, title string) (*Volume, error) {
	if !r.useCache {
		return r.searcher.SearchByTitle(ctx, title)
	}

	result, _, err := cache.GetOrFetchWithTTL(cacheTable, cacheKey(title),
		func() (cachedSearch, error) {
			volume, err := r.searcher.SearchByTitle(ctx, title)
			if apperrors.IsBookNotFoundError(err) {
				return cachedSearch{NotFound: true}, nil
			}
			if err != nil {
				return cachedSearch{}, err
			}
			return cachedSearch{Volume: volume}, nil
		},
		cache.SelectNegativeCacheTTL(func(c cachedSearch) bool { return c.NotFound }),
	)
	if err != nil {
		return nil, err
	}
	if result.NotFound || result.Volume == nil {
		return nil, apperrors.NewBookNotFoundError(title)
	}
	return result.Volume, nil
}

func cacheKey(title string) string {
	return "intitle:" + strings.ToLower(strings.TrimSpace(title))
}

// MetadataFromVolume extracts title, ISBN-13 and year from a search result.
// ISBN-10 converted to ISBN-13 wins over a listed ISBN-13.
func MetadataFromVolume(info VolumeInfo) (Metadata, error) {
	title := info.Title
	if title == "" {
		title = unknownTitle
	}

	isbn13, ok := isbn13FromIdentifiers(info)
	if !ok {
		return Metadata{}, apperrors.NewUnsupportedBookError(title)
	}

	return Metadata{
		Title:  title,
		ISBN13: isbn13,
		Year:   publicationYear(info.PublishedDate),
	}, nil
}

func isbn13FromIdentifiers(info VolumeInfo) (string, bool) {
	if isbn10, ok := info.Identifier(IdentifierISBN10); ok {
		if converted, ok := isbn.TenToThirteen(isbn.Normalize(isbn10)); ok {
			return converted, true
		}
	}

	if isbn13, ok := info.Identifier(IdentifierISBN13); ok {
		normalized := isbn.Normalize(isbn13)
		if isbn.IsISBN13(normalized) {
			return normalized, true
		}
	}

	return "", false
}

// publicationYear returns the first four characters of a published date,
// "0000" when the date is missing.
func publicationYear(publishedDate string) string {
	if publishedDate == "" {
		return unknownYear
	}
	if len(publishedDate) > 4 {
		return publishedDate[:4]
	}
	return publishedDate
}
