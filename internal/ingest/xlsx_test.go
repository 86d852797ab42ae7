package ingest

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestReadPriceListWithHeaders(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Наименование", "Цена", "Цвет"},
		{"Samsung Galaxy A54 128GB", "34 990,50", "Black"},
		{"Bosch GSB 13 RE", 7200, ""},
	})

	items, err := ReadPriceList(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len=%d", len(items))
	}
	if items[0].Name != "Samsung Galaxy A54 128GB" || items[0].CurrentPrice != 34990.50 {
		t.Fatalf("first item parsed wrong: %+v", items[0])
	}
	if items[0].Characteristics["цвет"] != "Black" {
		t.Fatalf("extra column should land in characteristics: %+v", items[0].Characteristics)
	}
	if items[1].CurrentPrice != 7200 {
		t.Fatalf("integer price parsed wrong: %+v", items[1])
	}
}

func TestReadPriceListHeaderless(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Makita HR2470", "15490"},
		{"", "100"},
	})

	items, err := ReadPriceList(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("nameless row should be skipped, len=%d", len(items))
	}
	if items[0].Name != "Makita HR2470" || items[0].CurrentPrice != 15490 {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestReadPriceListNoUsableRows(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Наименование", "Цена"},
		{"", ""},
	})

	if _, err := ReadPriceList(blob); err == nil {
		t.Fatal("expected an error for a price list with no parsable rows")
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1 234,56", 1234.56, true},
		{"1234.56", 1234.56, true},
		{"7200", 7200, true},
		{"7 200 руб.", 7200, true},
		{"", 0, false},
		{"договорная", 0, false},
	}
	for _, tc := range cases {
		got, ok := parsePrice(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parsePrice(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
