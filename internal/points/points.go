// Package points содержит расчёт балльной стоимости товаров.
package points

// SwapFee — фиксированная плата баллами за создание заявки на обмен.
const SwapFee int64 = 5

// SwapBonus — премия владельцу принятой вещи за завершённый обмен.
const SwapBonus int64 = 20

// MinValue — минимальная балльная стоимость товара.
const MinValue int64 = 10

var baseByCategory = map[string]int64{
	"Tops":      30,
	"Bottoms":   35,
	"Dresses":   45,
	"Outerwear": 50,
}

var subcategoryModifiers = map[string]map[string]int64{
	"Tops":      {"Casual": -5, "Formal": 10, "Athletic": 0},
	"Bottoms":   {"Casual": -5, "Formal": 10, "Athletic": 0},
	"Dresses":   {"Casual": -10, "Formal": 15, "Evening": 25},
	"Outerwear": {"Light": -10, "Heavy": 10, "Formal": 5},
}

var conditionMultipliers = map[string]float64{
	"New with tags": 1.5,
	"Like New":      1.25,
	"Good":          1.0,
	"Fair":          0.75,
}

// CalculateValue вычисляет балльную стоимость товара по категории,
// подкатегории и состоянию. Стоимость фиксируется один раз при создании
// объявления и больше не пересчитывается.
func CalculateValue(category, subcategory, condition string) int64 {
	base, ok := baseByCategory[category]
	if !ok {
		base = 30
	}

	var modifier int64
	if mods, ok := subcategoryModifiers[category]; ok {
		modifier = mods[subcategory]
	}

	multiplier, ok := conditionMultipliers[condition]
	if !ok {
		multiplier = 1.0
	}

	value := int64(float64(base+modifier) * multiplier)
	if value < MinValue {
		return MinValue
	}
	return value
}

// RedemptionCost вычисляет стоимость выкупа товара за баллы: полторы
// стоимости товара с округлением вниз.
func RedemptionCost(pointValue int64) int64 {
	return pointValue * 3 / 2
}
