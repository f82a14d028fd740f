// Package catalog normalizes raw product variant payloads into a queryable catalog.
package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cart-service/internal/models"
)

// MaxUnwrap bounds how many layers of string encoding are peeled off a payload.
const MaxUnwrap = 5

// Result is the outcome of parsing a variants payload: either a list of
// variants or Empty. Parsing never returns an error.
type Result struct {
	variants []models.Variant
	ok       bool
}

// Variants returns the parsed variants (nil when Empty).
func (r Result) Variants() []models.Variant {
	return r.variants
}

// Empty reports whether the payload resolved to no variants.
func (r Result) Empty() bool {
	return !r.ok || len(r.variants) == 0
}

// rawVariant accepts the loose shapes the products API has been seen to send.
type rawVariant struct {
	Size     string           `json:"size"`
	Color    string           `json:"color"`
	ColorHex string           `json:"colorHex"`
	Stock    flexInt          `json:"stock"`
	Price    *decimal.Decimal `json:"price"`
	SkuID    flexString       `json:"skuId"`
}

// flexInt decodes a JSON number or numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(int(n))
	return nil
}

// flexString decodes a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// Parse decodes a variants payload that may be a native JSON array, a JSON
// string holding the array, or a string encoded several times over.
func Parse(raw []byte) Result {
	data := bytes.TrimSpace(raw)
	unwrapped := 0
	for {
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return Result{}
		}
		switch data[0] {
		case '"':
			if unwrapped == MaxUnwrap {
				return Result{}
			}
			unwrapped++
			var inner string
			if err := json.Unmarshal(data, &inner); err != nil {
				return Result{}
			}
			data = bytes.TrimSpace([]byte(inner))
		case '[':
			var items []rawVariant
			if err := json.Unmarshal(data, &items); err != nil {
				return Result{}
			}
			return Result{variants: normalize(items), ok: true}
		default:
			return Result{}
		}
	}
}

func normalize(items []rawVariant) []models.Variant {
	variants := make([]models.Variant, 0, len(items))
	for _, item := range items {
		size := strings.TrimSpace(item.Size)
		if size == "" {
			size = models.SingleSize
		}
		stock := int(item.Stock)
		if stock < 0 {
			stock = 0
		}
		variants = append(variants, models.Variant{
			Size:     size,
			Color:    strings.TrimSpace(item.Color),
			ColorHex: strings.TrimSpace(item.ColorHex),
			Stock:    stock,
			Price:    item.Price,
			SkuID:    string(item.SkuID),
		})
	}
	return variants
}
