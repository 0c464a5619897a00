// Package journal persists closed trades. It is an append-only audit
// log: nothing here is read back by the engine.
package journal

import "github.com/culda/skalpit/account"

// Journal records each reconciled close together with the order audit
// map. Implementations must be safe to call from the engine loop;
// failures are reported to the caller, who logs and moves on.
type Journal interface {
	ExportClose(t *account.Trade, orders map[string]account.OrderEntry) error
	Close() error
}
