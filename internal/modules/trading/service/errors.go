package service

import (
	"errors"
	"strings"

	alpaca "magic_bot/internal/modules/alpaca/service"
)

// Код брокера «недостаточно средств».
const insufficientBalanceCode = 40310000

// IsInsufficientBalanceError отличает нехватку средств от прочих 403:
// нужен статус 403 и либо известный код, либо фраза в сообщении. Такая
// ошибка терминальна для символа в этом цикле и не ретраится.
func IsInsufficientBalanceError(err error) bool {
	var apiErr *alpaca.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != 403 {
		return false
	}
	if apiErr.Code == insufficientBalanceCode {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "insufficient balance")
}

// ShouldCancelExitSell — чистая функция трёх независимых переключателей.
// Cancel-and-replace делаем, только когда перевыставление включено и ни
// отдельный cancels-режим, ни маркет-выход не назначены терминальным
// действием.
func ShouldCancelExitSell(repriceEnabled, cancelsEnabled, marketExits bool) bool {
	return repriceEnabled && !cancelsEnabled && !marketExits
}
