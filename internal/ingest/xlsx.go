// Package ingest reads supplier price lists into items ready for matching.
package ingest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Valecer/market-sub000/internal"
)

// ReadPriceList parses an XLSX price list. The name and price columns are
// inferred from the header rows; every other headered column lands in the
// item's characteristics map. Rows without a usable name and price are
// skipped, not fatal.
func ReadPriceList(content []byte) ([]internal.Item, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open price list: %w", err)
	}
	defer f.Close()

	out := []internal.Item{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		nameIdx, priceIdx := -1, -1
		var headers []string
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && nameIdx < 0 {
				nameIdx, priceIdx = inferColumns(cells)
				if nameIdx >= 0 {
					headers = cells
					continue
				}
			}
			if nameIdx < 0 {
				nameIdx, priceIdx = 0, 1
			}

			name := pickCell(cells, nameIdx)
			price, ok := parsePrice(pickCell(cells, priceIdx))
			if name == "" || !ok {
				continue
			}

			item := internal.Item{
				Name:         name,
				CurrentPrice: price,
				MatchStatus:  internal.MatchUnmatched,
			}
			if chars := collectCharacteristics(headers, cells, nameIdx, priceIdx); len(chars) > 0 {
				item.Characteristics = chars
			}
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parsable rows in price list")
	}
	return out, nil
}

func inferColumns(headers []string) (nameIdx, priceIdx int) {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(h))
	}
	nameIdx = findHeaderIndex(norm, []string{"наимен", "товар", "номенк", "позиц", "name", "product"})
	priceIdx = findHeaderIndex(norm, []string{"цена", "стоим", "price", "cost"})
	return
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

// parsePrice accepts "1 234,56", "1234.56" and plain integers.
func parsePrice(raw string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.':
			return r
		case r == ',':
			return '.'
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

func collectCharacteristics(headers, cells []string, nameIdx, priceIdx int) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	chars := map[string]string{}
	for i, header := range headers {
		if i == nameIdx || i == priceIdx || header == "" {
			continue
		}
		if value := pickCell(cells, i); value != "" {
			chars[strings.ToLower(header)] = value
		}
	}
	return chars
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, strings.Join(strings.Fields(c), " "))
	}
	return out
}
