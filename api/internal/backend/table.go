package backend

import (
	"math"
	"strings"
)

// Facts is one row of the nutrition table.
type Facts struct {
	Food            string  `json:"food"`
	CaloriesPer100g int     `json:"calories_per_100g"`
	Protein         float64 `json:"protein"`
	Carbs           float64 `json:"carbs"`
	Fat             float64 `json:"fat"`
	DefaultServingG int     `json:"default_serving_g"`
}

// DefaultFood is used when a label is not in the table.
const DefaultFood = "pizza"

var table = map[string]Facts{
	"pizza":     {CaloriesPer100g: 266, Protein: 11.0, Carbs: 33.0, Fat: 10.0, DefaultServingG: 150},
	"banana":    {CaloriesPer100g: 89, Protein: 1.1, Carbs: 23.0, Fat: 0.3, DefaultServingG: 118},
	"spaghetti": {CaloriesPer100g: 158, Protein: 5.8, Carbs: 30.9, Fat: 0.9, DefaultServingG: 200},
	"salad":     {CaloriesPer100g: 50, Protein: 2.0, Carbs: 6.0, Fat: 2.0, DefaultServingG: 180},
}

// Foods lists the table keys in a fixed order.
func Foods() []string {
	return []string{"pizza", "banana", "spaghetti", "salad"}
}

// LookupFacts is case-insensitive.
func LookupFacts(food string) (Facts, bool) {
	key := strings.ToLower(strings.TrimSpace(food))
	f, ok := table[key]
	if !ok {
		return Facts{}, false
	}
	f.Food = key
	return f, true
}

// Serving is the estimate for one default serving of a food.
type Serving struct {
	Food     string
	Calories int
	Protein  float64
	Carbs    float64
	Fat      float64
	ServingG int
}

// Calc estimates a default serving. Unknown foods use the DefaultFood row.
// Macros are the table's per-serving figures.
func Calc(food string) Serving {
	f, ok := LookupFacts(food)
	if !ok {
		f, _ = LookupFacts(DefaultFood)
	}
	return Serving{
		Food:     f.Food,
		Calories: int(math.RoundToEven(float64(f.CaloriesPer100g*f.DefaultServingG) / 100)),
		Protein:  f.Protein,
		Carbs:    f.Carbs,
		Fat:      f.Fat,
		ServingG: f.DefaultServingG,
	}
}
