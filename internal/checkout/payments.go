package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SimulatedPayments approves every positive charge and hands back a fake
// payment intent id. It stands in for a real processor in local runs.
type SimulatedPayments struct{}

func NewSimulatedPayments() *SimulatedPayments {
	return &SimulatedPayments{}
}

func (p *SimulatedPayments) Charge(_ context.Context, amount float64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("charge of %.2f: %w", amount, ErrPaymentDeclined)
	}
	return "pi_" + uuid.New().String(), nil
}
