package cli

import (
	"fmt"
	"strconv"
)

// parseAmount разбирает денежную сумму из аргумента командной строки
func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return amount, nil
}
