package ledger

import (
	"errors"
	"fmt"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// InsufficientBalanceError carries what the user needs to pick another
// account: the balance that was available and the debit that was refused.
type InsufficientBalanceError struct {
	Balance int64
	Amount  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %d available, %d requested", e.Balance, -e.Amount)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// CheckBalance decides whether signed may be applied to an account holding
// current. Inflows always pass, as does anything on an account that may go
// negative.
func CheckBalance(current, signed int64, allowNegative bool) error {
	if signed >= 0 || allowNegative {
		return nil
	}
	if current+signed >= 0 {
		return nil
	}
	return &InsufficientBalanceError{Balance: current, Amount: signed}
}
