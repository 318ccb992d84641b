package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
	"expensetracker/internal/services"
)

// TerminalCheckout collects the gateway's signed confirmation by hand: the
// payer completes the hosted checkout for the printed order and pastes the
// payment id and signature back.
type TerminalCheckout struct {
	prompt *Prompter
	out    io.Writer
}

func NewTerminalCheckout(prompt *Prompter, out io.Writer) *TerminalCheckout {
	return &TerminalCheckout{prompt: prompt, out: out}
}

func (c *TerminalCheckout) Pay(ctx context.Context, order api.Order, payer core.Session) (services.CheckoutResult, error) {
	amount := core.FormatCurrency(decimal.New(order.Amount, -2), order.Currency)
	fmt.Fprintf(c.out, "Premium for %s: order %s, %s.\n", payer.Email, order.ID, amount)
	fmt.Fprintln(c.out, "Complete the payment in the checkout page, then paste its confirmation. Leave blank to cancel.")

	paymentID, err := c.prompt.Ask(ctx, "Payment ID")
	if err != nil {
		return services.CheckoutResult{}, err
	}
	if paymentID == "" {
		return services.CheckoutResult{}, services.ErrCheckoutCanceled
	}
	signature, err := c.prompt.Ask(ctx, "Signature")
	if err != nil {
		return services.CheckoutResult{}, err
	}
	if signature == "" {
		return services.CheckoutResult{}, services.ErrCheckoutCanceled
	}
	return services.CheckoutResult{
		PaymentID: paymentID,
		OrderID:   order.ID,
		Signature: signature,
	}, nil
}
