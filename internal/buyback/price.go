package buyback

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPriceSelector matches the price paragraph on a product page.
const DefaultPriceSelector = "p.text-p__detail--price"

// ExtractPriceText returns the trimmed text content of the first element
// matching selector in a rendered HTML document.
func ExtractPriceText(html, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return strings.TrimSpace(sel.Text()), nil
}

// ParsePrice converts Slovak formatted price text such as "1.234,50 €" into
// a number. Without a comma the text is read as a plain decimal.
func ParsePrice(text string) (float64, error) {
	cleaned := strings.ReplaceAll(text, "EUR", "")
	cleaned = strings.Map(func(r rune) rune {
		if r == '€' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	if cleaned == "" {
		return 0, fmt.Errorf("empty price text %q", text)
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price text %q: %w", text, err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("invalid price text %q", text)
	}
	return price, nil
}
