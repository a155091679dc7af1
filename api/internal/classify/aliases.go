package classify

import "strings"

// DefaultAliases maps raw ImageNet-style labels onto food keys. Targets
// missing from the nutrition table are still rejected by the chain.
var DefaultAliases = map[string]string{
	"hotdog":           "hot_dog",
	"hamburger":        "burger",
	"cheeseburger":     "burger",
	"pretzel":          "bagel",
	"french_loaf":      "bread",
	"pasta":            "spaghetti",
	"burrito":          "spaghetti",
	"carbonara":        "spaghetti",
	"spaghetti_squash": "spaghetti",
	"ice_lolly":        "ice_cream",
}

// Canonical normalizes a raw label to a food key: lower case, trimmed,
// spaces as underscores, then resolved through aliases.
func Canonical(label string, aliases map[string]string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
	if food, ok := aliases[key]; ok {
		return food
	}
	return key
}
