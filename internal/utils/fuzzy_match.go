package utils

import (
	"strings"

	"dwelligence/internal/model"
)

// categoryAliases maps loose wording to amenity categories. Specific aliases
// come first so "bus stop" is matched before "station".
var categoryAliases = []struct {
	alias    string
	category model.Category
}{
	{"community center", model.CategoryCommunityCenter},
	{"community centre", model.CategoryCommunityCenter},
	{"transit station", model.CategoryTransitStation},
	{"subway station", model.CategoryTransitStation},
	{"train station", model.CategoryTransitStation},
	{"grocery store", model.CategoryGrocery},
	{"coffee shop", model.CategoryCafe},
	{"supermarket", model.CategoryGrocery},
	{"playground", model.CategoryPark},
	{"drugstore", model.CategoryPharmacy},
	{"pharmacy", model.CategoryPharmacy},
	{"pharmacies", model.CategoryPharmacy},
	{"chemist", model.CategoryPharmacy},
	{"rec center", model.CategoryCommunityCenter},
	{"library", model.CategoryCommunityCenter},
	{"bus stop", model.CategoryTransitStation},
	{"transit", model.CategoryTransitStation},
	{"subway", model.CategoryTransitStation},
	{"metro", model.CategoryTransitStation},
	{"station", model.CategoryTransitStation},
	{"grocery", model.CategoryGrocery},
	{"groceries", model.CategoryGrocery},
	{"market", model.CategoryGrocery},
	{"fitness", model.CategoryGym},
	{"gym", model.CategoryGym},
	{"restaurant", model.CategoryRestaurant},
	{"dining", model.CategoryRestaurant},
	{"food", model.CategoryRestaurant},
	{"coffee", model.CategoryCafe},
	{"cafe", model.CategoryCafe},
	{"café", model.CategoryCafe},
	{"green space", model.CategoryPark},
	{"park", model.CategoryPark},
}

// MatchCategory resolves a free-form amenity term to a category. Exact
// category names match first, then known aliases by substring.
func MatchCategory(term string) (model.Category, bool) {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return "", false
	}

	normalized := model.Category(strings.ReplaceAll(t, " ", "_"))
	if normalized.Valid() {
		return normalized, true
	}

	for _, a := range categoryAliases {
		if strings.Contains(t, a.alias) {
			return a.category, true
		}
	}
	return "", false
}

// ParseCategories resolves every term, dropping unknown ones and duplicates
// while keeping first-seen order.
func ParseCategories(terms []string) []model.Category {
	seen := make(map[model.Category]bool, len(terms))
	out := make([]model.Category, 0, len(terms))
	for _, term := range terms {
		c, ok := MatchCategory(term)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ParseCategoryList parses a comma separated list such as "park,cafe".
func ParseCategoryList(csv string) []model.Category {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return ParseCategories(strings.Split(csv, ","))
}
