// Package pricing resolves a product code to its price in MMK. Default
// prices can be overridden per item through the custom price table kept in
// the store.
package pricing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var defaultPrices = map[string]int{
	"11": 950, "22": 1900, "33": 2850, "56": 4200, "112": 8200,
	"86": 5100, "172": 10200, "257": 15300, "343": 20400,
	"429": 25500, "514": 30600, "600": 35700, "706": 40800,
	"878": 51000, "963": 56100, "1049": 61200, "1135": 66300,
	"1412": 81600, "2195": 122400, "3688": 204000,
	"5532": 306000, "9288": 510000, "12976": 714000,
	"55": 3500, "165": 10000, "275": 16000, "565": 33000,
}

const weeklyPassBase = 6000

// PriceFor resolves a product code against the custom table first, then the
// defaults. Weekly passes (wp1..wp10) scale linearly from the base price.
// Returns 0 when the code is unknown.
func PriceFor(code string, custom map[string]int) int {
	if price, ok := custom[code]; ok {
		return price
	}

	if strings.HasPrefix(code, "wp") {
		weekNum, err := strconv.Atoi(code[2:])
		if err == nil && weekNum >= 1 && weekNum <= 10 {
			return weekNum * weeklyPassBase
		}
	}

	return defaultPrices[code]
}

// Known reports whether the code resolves to a nonzero price.
func Known(code string, custom map[string]int) bool {
	return PriceFor(code, custom) > 0
}

// Codes returns every priced product code, custom overrides included,
// sorted for stable display.
func Codes(custom map[string]int) []string {
	seen := make(map[string]bool, len(defaultPrices)+len(custom))
	for code := range defaultPrices {
		seen[code] = true
	}
	for code := range custom {
		seen[code] = true
	}
	for i := 1; i <= 10; i++ {
		seen[fmt.Sprintf("wp%d", i)] = true
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// WeeklyPassTable derives wp1..wp10 prices from the price of a single pass
// span, mirroring the per-week scaling of the defaults.
func WeeklyPassTable(weekNum, price int) map[string]int {
	base := float64(price) / float64(weekNum)
	table := make(map[string]int, 10)
	for i := 1; i <= 10; i++ {
		table[fmt.Sprintf("wp%d", i)] = int(base * float64(i))
	}
	return table
}
