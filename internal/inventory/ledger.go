package inventory

import (
	"fmt"
	"time"
)

// ApplyCompletion returns product with the stock effect of a completed
// workflow applied. Outbound completions are not re-checked and may leave
// quantity negative when stock moved between creation and completion.
func ApplyCompletion(product Product, tx Transaction, now time.Time) (Product, error) {
	if product.ID != tx.ProductID {
		return Product{}, fmt.Errorf("%w: %s is not %s", ErrProductMismatch, tx.ProductID, product.ID)
	}
	switch tx.Type {
	case TransactionTypeInbound:
		return product.withQuantity(product.Quantity+tx.Quantity, now), nil
	case TransactionTypeOutbound:
		return product.withQuantity(product.Quantity-tx.Quantity, now), nil
	default:
		return Product{}, fmt.Errorf("inventory: unknown transaction type %q", tx.Type)
	}
}
