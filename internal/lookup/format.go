package lookup

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lepinkainen/buyback/internal/errors"
)

const currencySuffix = " €"

// Messages shown to users, in Slovak like the buyback site.
const (
	MsgMissingTitle = "Zadaj názov knihy"
	MsgMissingPrice = "Zadaj cenu, za ktorú kúpiš knihu"
	MsgBookNotFound = "Kniha nenájdená"
	MsgISBNNotFound = "ISBN nenájdené, kniha nie je podporovaná"
	MsgLookupFailed = "Chyba pri vyhľadávaní knihy"
)

// plainDecimal matches digits with an optional fractional part: "5", "4.50", "4,5", ".5".
var plainDecimal = regexp.MustCompile(`^(\d+([.,]\d*)?|[.,]\d+)$`)

// ParseBuyPrice reads a positive decimal; a comma is accepted as the decimal separator.
// Signs, exponents, digit separators and hex forms are rejected.
func ParseBuyPrice(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if !plainDecimal.MatchString(value) {
		return 0, errors.NewValidationError("buyPrice", errors.CodeMissingPrice, MsgMissingPrice)
	}
	value = strings.Replace(value, ",", ".", 1)

	price, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, errors.NewValidationError("buyPrice", errors.CodeMissingPrice, MsgMissingPrice)
	}
	return price, nil
}

// FormatBuyPrice renders the buy price with the shortest exact decimal form, e.g. "5 €" or "5.5 €".
func FormatBuyPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64) + currencySuffix
}

// Profit returns buyback minus buy price rounded to cents, or nil without a buyback price.
func Profit(buybackPrice *float64, buyPrice float64) *string {
	if buybackPrice == nil {
		return nil
	}

	diff := math.Round((*buybackPrice-buyPrice)*100) / 100
	if diff == 0 {
		diff = 0 // drop negative zero
	}
	formatted := strconv.FormatFloat(diff, 'f', 2, 64) + currencySuffix
	return &formatted
}
