package rental

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Description
	}{
		{
			name: "plain text only",
			raw:  "Cozy studio downtown",
			want: Description{Text: "Cozy studio downtown"},
		},
		{
			name: "all fields with typed mxn price",
			raw:  "My flat |IMG| https://img.example/1.jpg |LOC| Roma Norte, CDMX |PRICE_MXN| 12000",
			want: Description{
				Text:     "My flat",
				ImageURL: "https://img.example/1.jpg",
				Location: "Roma Norte, CDMX",
				Price:    &PriceTag{Value: decimal.NewFromInt(12000), Currency: CurrencyMXN},
			},
		},
		{
			name: "typed eth price",
			raw:  "Loft |PRICE_ETH| 0.25",
			want: Description{
				Text:  "Loft",
				Price: &PriceTag{Value: decimal.RequireFromString("0.25"), Currency: CurrencyETH},
			},
		},
		{
			name: "legacy untyped price is eth",
			raw:  "Old listing |PRICE| 0.1",
			want: Description{
				Text:  "Old listing",
				Price: &PriceTag{Value: decimal.RequireFromString("0.1"), Currency: CurrencyETH, Legacy: true},
			},
		},
		{
			name: "image without location",
			raw:  "House |IMG| https://img.example/2.jpg |PRICE_MXN| 8500",
			want: Description{
				Text:     "House",
				ImageURL: "https://img.example/2.jpg",
				Price:    &PriceTag{Value: decimal.NewFromInt(8500), Currency: CurrencyMXN},
			},
		},
		{
			name: "location without image",
			raw:  "Room |LOC| Condesa",
			want: Description{Text: "Room", Location: "Condesa"},
		},
		{
			name: "unparseable price kept as zero",
			raw:  "Flat |PRICE_ETH| not-a-number",
			want: Description{
				Text:  "Flat",
				Price: &PriceTag{Value: decimal.Zero, Currency: CurrencyETH},
			},
		},
		{
			name: "empty string",
			raw:  "",
			want: Description{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeDescription(tt.raw)
			assert.Equal(t, tt.want.Text, got.Text)
			assert.Equal(t, tt.want.ImageURL, got.ImageURL)
			assert.Equal(t, tt.want.Location, got.Location)
			if tt.want.Price == nil {
				assert.Nil(t, got.Price)
			} else {
				require.NotNil(t, got.Price)
				assert.True(t, tt.want.Price.Value.Equal(got.Price.Value),
					"price %s != %s", got.Price.Value, tt.want.Price.Value)
				assert.Equal(t, tt.want.Price.Currency, got.Price.Currency)
				assert.Equal(t, tt.want.Price.Legacy, got.Price.Legacy)
			}
		})
	}
}

func TestEncodeDescriptionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		desc Description
	}{
		{
			name: "all fields",
			desc: Description{
				Text:     "My flat",
				ImageURL: "https://img.example/1.jpg",
				Location: "Roma Norte, CDMX",
				Price:    &PriceTag{Value: decimal.NewFromInt(12000), Currency: CurrencyMXN},
			},
		},
		{
			name: "text only",
			desc: Description{Text: "Bare listing"},
		},
		{
			name: "legacy price spelling survives",
			desc: Description{
				Text:  "Old listing",
				Price: &PriceTag{Value: decimal.RequireFromString("0.1"), Currency: CurrencyETH, Legacy: true},
			},
		},
		{
			name: "eth price without extras",
			desc: Description{
				Text:  "Loft",
				Price: &PriceTag{Value: decimal.RequireFromString("0.25"), Currency: CurrencyETH},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeDescription(EncodeDescription(tt.desc))
			assert.Equal(t, tt.desc.Text, got.Text)
			assert.Equal(t, tt.desc.ImageURL, got.ImageURL)
			assert.Equal(t, tt.desc.Location, got.Location)
			if tt.desc.Price == nil {
				assert.Nil(t, got.Price)
			} else {
				require.NotNil(t, got.Price)
				assert.True(t, tt.desc.Price.Value.Equal(got.Price.Value))
				assert.Equal(t, tt.desc.Price.Currency, got.Price.Currency)
				assert.Equal(t, tt.desc.Price.Legacy, got.Price.Legacy)
			}
		})
	}
}

func TestEncodeDescriptionLegacyMarker(t *testing.T) {
	raw := EncodeDescription(Description{
		Text:  "Old listing",
		Price: &PriceTag{Value: decimal.RequireFromString("0.1"), Currency: CurrencyETH, Legacy: true},
	})
	assert.Equal(t, "Old listing |PRICE| 0.1", raw)
}
