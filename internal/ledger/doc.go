// Package ledger implements the melon ledger: accounts, products and
// purchases stored in three tables and read through identity caches.
//
// # Accounts
//
// Find returns an immutable AccountSnapshot, cached by player id. Two finds
// with no intervening save, refresh or clear return the same pointer.
//
// FindMutable returns a private working copy. Melon changes are recorded
// as a pending delta on the account's modifier holder and written back as
//
//	UPDATE lanatus_account SET melons = melons + ? WHERE player_uuid = ?
//
// so two mutable copies saved in either order both take effect. A save that
// updates no row fails with a Conflict error and keeps the pending changes
// on the mutable copy so the caller can retry. A successful save
// invalidates the cached snapshot.
//
// A mutable account is not safe for concurrent use; repositories and
// snapshots are.
//
// # Products and purchases
//
// Products are registered once per module (insert-or-ignore) and cached by
// id. Purchases are created by a PurchaseBuilder, which charges the buyer
// and records the purchase in one transaction; a purchase's product is
// resolved through the product repository.
package ledger
