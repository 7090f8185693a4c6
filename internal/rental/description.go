package rental

import (
	"strings"

	"github.com/shopspring/decimal"
)

// The contract stores a property's display fields packed into its single
// description string, joined by fixed marker tokens:
//
//	My flat |IMG| https://… |LOC| Roma Norte, CDMX |PRICE_MXN| 12000
//
// Existing on-chain records cannot be migrated, so decoding must accept every
// historical spelling: the untyped " |PRICE| " tag (ETH-denominated), and the
// typed " |PRICE_ETH| " / " |PRICE_MXN| " tags. Markers are decoded as an
// ordered rule list applied back-to-front off the end of the remaining text,
// each rule optional.

const (
	MarkerImage    = " |IMG| "
	MarkerLocation = " |LOC| "
	// MarkerPrice is the legacy untyped price tag, always ETH-denominated.
	MarkerPrice    = " |PRICE| "
	MarkerPriceETH = " |PRICE_ETH| "
	MarkerPriceMXN = " |PRICE_MXN| "
)

// Currency a listed price is denominated in. Display-only; on-chain rent is
// always wei.
type Currency string

const (
	CurrencyETH Currency = "ETH"
	CurrencyMXN Currency = "MXN"
)

// PriceTag is an advertised price decoded from a property description.
type PriceTag struct {
	Value    decimal.Decimal
	Currency Currency
	// Legacy marks a price read from (or to be written with) the untyped
	// " |PRICE| " tag. Only valid with CurrencyETH.
	Legacy bool
}

// Description holds the decoded display fields of a property.
type Description struct {
	Text     string
	ImageURL string
	Location string
	Price    *PriceTag
}

// DecodeDescription splits a composite description into its display fields.
// Rules run in fixed order: price tag (any spelling) first, then location,
// then image, each stripping its suffix off the remaining text. Any subset of
// markers may be absent. Unparseable price values are kept as a zero value
// rather than failing the whole record.
func DecodeDescription(raw string) Description {
	d := Description{Text: raw}

	if rest, val, ok := splitMarker(d.Text, MarkerPriceMXN); ok {
		d.Text = rest
		d.Price = parsePrice(val, CurrencyMXN, false)
	} else if rest, val, ok := splitMarker(d.Text, MarkerPriceETH); ok {
		d.Text = rest
		d.Price = parsePrice(val, CurrencyETH, false)
	} else if rest, val, ok := splitMarker(d.Text, MarkerPrice); ok {
		// Legacy records carry no currency tag and are ETH-denominated.
		d.Text = rest
		d.Price = parsePrice(val, CurrencyETH, true)
	}

	if rest, val, ok := splitMarker(d.Text, MarkerLocation); ok {
		d.Text = rest
		d.Location = val
	}

	if rest, val, ok := splitMarker(d.Text, MarkerImage); ok {
		d.Text = rest
		d.ImageURL = val
	}

	return d
}

// EncodeDescription packs display fields back into the on-chain composite
// string: text, image, location, price, in the order the decoder strips them
// off in reverse.
func EncodeDescription(d Description) string {
	var b strings.Builder
	b.WriteString(d.Text)

	if d.ImageURL != "" {
		b.WriteString(MarkerImage)
		b.WriteString(d.ImageURL)
	}
	if d.Location != "" {
		b.WriteString(MarkerLocation)
		b.WriteString(d.Location)
	}
	if d.Price != nil {
		switch {
		case d.Price.Legacy:
			b.WriteString(MarkerPrice)
		case d.Price.Currency == CurrencyMXN:
			b.WriteString(MarkerPriceMXN)
		default:
			b.WriteString(MarkerPriceETH)
		}
		b.WriteString(d.Price.Value.String())
	}

	return b.String()
}

func splitMarker(s, marker string) (rest, value string, ok bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(marker):], true
}

func parsePrice(val string, cur Currency, legacy bool) *PriceTag {
	v, err := decimal.NewFromString(strings.TrimSpace(val))
	if err != nil {
		v = decimal.Zero
	}
	return &PriceTag{Value: v, Currency: cur, Legacy: legacy}
}
