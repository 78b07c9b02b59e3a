package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var rxKeepNums = regexp.MustCompile(`[^\d\.\-]`)

// убрать неразрывные/узкие и обычные пробелы, запятую → точка
var ruNumber = strings.NewReplacer("\u00A0", "", "\u202F", "", " ", "", "\t", "", ",", ".")

func cleanNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	s = ruNumber.Replace(s)
	// оставить только цифры, точку и минус (на случай мусора)
	s = rxKeepNums.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "." {
		return "", false
	}
	return s, true
}

// ParseFloatRU парсит "1 234,50", "197 ,00", "2 345,6" (NBSP/NNBSP) и т.п.
func ParseFloatRU(s string) (float64, bool) {
	s, ok := cleanNumber(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// ParseIntRU: целое ("12 345", "610001", "42,0"); дробные значения отвергаются.
func ParseIntRU(s string) (int, bool) {
	f, ok := ParseFloatRU(s)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// ParseDecimalRU: денежное значение без потерь на float. Пустое → Valid=false.
func ParseDecimalRU(s string) (decimal.NullDecimal, bool) {
	s, ok := cleanNumber(s)
	if !ok {
		return decimal.NullDecimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, false
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, true
}
