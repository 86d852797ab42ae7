package catalog

import (
	"testing"

	"github.com/Valecer/market-sub000/internal"
)

func TestBuildIndex(t *testing.T) {
	cat := int64(3)
	products := []internal.Product{
		{ID: 1, Name: "Samsung Galaxy A54 128GB", CategoryID: &cat},
		{ID: 2, Name: "samsung galaxy a54 128gb"},
		{ID: 3, Name: "Bosch GSB 13 RE"},
	}

	idx := BuildIndex(products)

	if len(idx.ByName["SAMSUNG GALAXY A54 128GB"]) != 2 {
		t.Fatalf("case variants must share a normalized name bucket: %+v", idx.ByName)
	}
	if len(idx.ByCategory[cat]) != 1 || idx.ByCategory[cat][0].ID != 1 {
		t.Fatalf("category bucket wrong: %+v", idx.ByCategory)
	}
	if _, ok := idx.TokenToProductIDs["BOSCH"][3]; !ok {
		t.Fatalf("token index missing product 3: %+v", idx.TokenToProductIDs)
	}
	if idx.ProductsByID[2].Name != "samsung galaxy a54 128gb" {
		t.Fatalf("id lookup wrong: %+v", idx.ProductsByID[2])
	}
}
