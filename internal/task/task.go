// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"math/big"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/types"
)

// OperationType defines the supported operation types
type OperationType string

const (
	OperationLaunch  OperationType = "launch"
	OperationBuy     OperationType = "buy"
	OperationSell    OperationType = "sell"
	OperationPropose OperationType = "propose"
)

// Task is one scripted platform operation from the tasks file.
type Task struct {
	ID         int
	TaskName   string
	WalletName string
	Operation  OperationType
	// Amount is a decimal token amount. For launch it is the initial purchase,
	// for buy the asset spent, for sell the tokens sold.
	Amount          string
	SlippagePercent float64
	// Token is a launched symbol or a base58 token address.
	Token string

	// Launch and propose only.
	Name        string
	Symbol      string
	Cores       []uint8
	Description string

	Repeat    int
	CreatedAt time.Time
}

// Validate checks if the task has valid parameters
func (t *Task) Validate() error {
	if t.TaskName == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.WalletName == "" {
		return fmt.Errorf("wallet name cannot be empty")
	}

	switch t.Operation {
	case OperationLaunch:
		if t.Name == "" || t.Symbol == "" {
			return fmt.Errorf("launch requires name and symbol")
		}
		if len(t.Cores) == 0 {
			return fmt.Errorf("launch requires at least one core")
		}
	case OperationBuy, OperationSell:
		if t.Token == "" {
			return fmt.Errorf("token cannot be empty")
		}
	case OperationPropose:
		if t.Token == "" || t.Description == "" {
			return fmt.Errorf("propose requires token and description")
		}
		if len(t.Cores) != 1 {
			return fmt.Errorf("propose requires exactly one core")
		}
		return nil
	default:
		return fmt.Errorf("invalid operation: %s", t.Operation)
	}

	amount, err := t.AmountUnits()
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	const MinSlippage = 0.1
	if t.SlippagePercent < MinSlippage || t.SlippagePercent > 100 {
		return fmt.Errorf("slippage must be between %.1f and 100", MinSlippage)
	}
	return nil
}

// AmountUnits parses Amount into base units.
func (t *Task) AmountUnits() (*big.Int, error) {
	amount, err := types.ParseUnits(t.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", t.Amount, err)
	}
	return amount, nil
}

// MinOut applies the task slippage to a quoted output.
func (t *Task) MinOut(quote *big.Int) *big.Int {
	if quote == nil {
		return nil
	}
	keepBps := uint32((100 - t.SlippagePercent) * 100)
	return types.ApplyBps(quote, keepBps)
}
