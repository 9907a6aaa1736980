package money

import "github.com/shopspring/decimal"

// Round приводит сумму к двум знакам после запятой (банковские копейки
// здесь не нужны, округление обычное, half-up).
func Round(amount float64) float64 {
	v, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return v
}

// Deposit считает предоплату за размещение задачи: 50% бюджета,
// округлённые до двух знаков.
func Deposit(budget float64) float64 {
	v, _ := decimal.NewFromFloat(budget).
		Mul(decimal.NewFromFloat(0.5)).
		Round(2).
		Float64()
	return v
}

// MinorUnits переводит сумму в минимальные единицы валюты (центы).
// Прямое int64(amount*100) усекает дробную часть: 19.99 превращается
// в 1998 из-за представления float64.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// PlatformFee считает комиссию платформы от суммы по проценту.
func PlatformFee(amount float64, percent float64) float64 {
	v, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return v
}

// Sub вычитает b из a без накопления ошибки плавающей точки.
func Sub(a, b float64) float64 {
	v, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Float64()
	return v
}

// Add складывает a и b без накопления ошибки плавающей точки.
func Add(a, b float64) float64 {
	v, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return v
}
