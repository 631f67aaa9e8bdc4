package feature

import "strings"

// Category is a product category derived from the line item description.
type Category int

// Categories in output order. Other must stay last.
const (
	Bags Category = iota
	Kitchen
	HomeDecor
	Toys
	Other
	NumCategories = int(Other) + 1
)

var categoryNames = [NumCategories]string{
	Bags:      "Bags",
	Kitchen:   "Kitchen",
	HomeDecor: "HomeDecor",
	Toys:      "Toys",
	Other:     "Other",
}

func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return "Category(?)"
	}

	return categoryNames[c]
}

// Column is the output column name of the category share.
func (c Category) Column() string {
	return "CatShare_" + c.String()
}

// Categories returns all categories in output order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}

	return out
}

type keyword struct {
	token    string
	category Category
}

// keywords is matched top to bottom and the first hit wins, so a description
// containing both "party" and "bag" is Bags.
var keywords = []keyword{
	{"bag", Bags},
	{"wallet", Bags},
	{"purse", Bags},
	{"mug", Kitchen},
	{"cup", Kitchen},
	{"plate", Kitchen},
	{"bowl", Kitchen},
	{"lamp", HomeDecor},
	{"candle", HomeDecor},
	{"lantern", HomeDecor},
	{"light", HomeDecor},
	{"toy", Toys},
	{"party", Toys},
	{"game", Toys},
}

// Classify maps a product description to its category by case-insensitive
// keyword containment.
func Classify(description string) Category {
	desc := strings.ToLower(description)
	for _, k := range keywords {
		if strings.Contains(desc, k.token) {
			return k.category
		}
	}

	return Other
}
