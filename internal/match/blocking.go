package match

import (
	"github.com/Valecer/market-sub000/internal"
)

// categoryParents relates sibling categories through a shared parent, so a
// scooter misfiled as an e-bike still sees the right candidates.
var categoryParents = map[string]string{
	"electric_scooters": "electric_transport",
	"electric_bikes":    "electric_transport",
	"smartphones":       "mobile_devices",
	"tablets":           "mobile_devices",
	"laptops":           "computers",
	"desktops":          "computers",
}

func relatedCategories(a, b string) bool {
	if a == b {
		return true
	}
	pa, pb := categoryParents[a], categoryParents[b]
	if pa != "" && pa == pb {
		return true
	}
	return pa == b || pb == a
}

// FindMatchesWithBlocking narrows the candidate set to the item's classified
// category (and hierarchically related ones) before scoring. Blocking is a
// performance optimization only: an empty blocked set falls back to the full
// candidate set.
func (m *Matcher) FindMatchesWithBlocking(
	itemName string,
	itemID int64,
	products []internal.Product,
	classifier Classifier,
	categoryHint string,
	keyByCategoryID map[int64]string,
) internal.MatchResult {
	if classifier == nil || len(keyByCategoryID) == 0 {
		return m.FindMatches(itemName, itemID, products)
	}

	itemKey, ok := classifier.Classify(itemName, categoryHint)
	if !ok {
		return m.FindMatches(itemName, itemID, products)
	}

	blocked := make([]internal.Product, 0, len(products))
	for _, p := range products {
		if p.CategoryID == nil {
			continue
		}
		key, known := keyByCategoryID[*p.CategoryID]
		if known && relatedCategories(itemKey, key) {
			blocked = append(blocked, p)
		}
	}
	if len(blocked) == 0 {
		return m.FindMatches(itemName, itemID, products)
	}
	return m.FindMatches(itemName, itemID, blocked)
}
