// Package buyback fetches the price vykupujeme-online.sk offers for a used book.
package buyback

import (
	"strings"

	"github.com/lepinkainen/buyback/internal/slug"
)

// DefaultBaseURL is the buyback site all quotes are fetched from.
const DefaultBaseURL = "https://vykupujeme-online.sk"

// BuildURL guesses the product page address for a book. The site uses
// "{isbn13}-{slug(title)}-{year}" as the path; nothing guarantees the page
// exists.
func BuildURL(baseURL, isbn13, title, year string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + isbn13 + "-" + slug.Make(title) + "-" + year
}
