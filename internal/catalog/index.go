package catalog

import (
	"github.com/Valecer/market-sub000/internal"
	"github.com/Valecer/market-sub000/internal/util"
)

// Index holds per-run lookup structures over the candidate product set.
type Index struct {
	ProductsByID       map[int64]internal.Product
	ByName             map[string][]internal.Product
	ByCategory         map[int64][]internal.Product
	TokenToProductIDs  map[string]map[int64]struct{}
	NormalizedNameByID map[int64]string
	Ordered            []internal.Product
}

func BuildIndex(products []internal.Product) *Index {
	idx := &Index{
		ProductsByID:       map[int64]internal.Product{},
		ByName:             map[string][]internal.Product{},
		ByCategory:         map[int64][]internal.Product{},
		TokenToProductIDs:  map[string]map[int64]struct{}{},
		NormalizedNameByID: map[int64]string{},
		Ordered:            products,
	}

	for _, p := range products {
		idx.ProductsByID[p.ID] = p
		norm := util.Normalize(p.Name)
		idx.NormalizedNameByID[p.ID] = norm
		idx.ByName[norm] = append(idx.ByName[norm], p)
		if p.CategoryID != nil {
			idx.ByCategory[*p.CategoryID] = append(idx.ByCategory[*p.CategoryID], p)
		}
		for _, token := range util.Tokenize(p.Name) {
			if _, ok := idx.TokenToProductIDs[token]; !ok {
				idx.TokenToProductIDs[token] = map[int64]struct{}{}
			}
			idx.TokenToProductIDs[token][p.ID] = struct{}{}
		}
	}

	return idx
}
