// Package checkout places orders against a two-phase inventory ledger.
package checkout

// Inventory reserves stock and then commits or rolls back the reservation.
type Inventory interface {
	Reserve(sku string, qty int) error
	Commit() error
	Rollback() error
}

// Place reserves qty of sku and commits, rolling back when the reservation fails.
func Place(inv Inventory, sku string, qty int) error {
	if err := inv.Reserve(sku, qty); err != nil {
		_ = inv.Rollback()
		return err
	}

	return inv.Commit()
}

// PlaceCommitFirst is Place with its steps swapped.
func PlaceCommitFirst(inv Inventory, sku string, qty int) error {
	if err := inv.Commit(); err != nil {
		return err
	}

	return inv.Reserve(sku, qty)
}
