package notifier

import (
	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/network"
)

// Family is the event source an EventKind belongs to.
type Family byte

// Event families.
const (
	PeerFamily Family = iota
	BlockFamily
	TransactionFamily
	LedgerFamily
)

var familyNames = [...]string{
	PeerFamily:        "Peer",
	BlockFamily:       "Block",
	TransactionFamily: "Transaction",
	LedgerFamily:      "Ledger",
}

// String implements the fmt.Stringer interface.
func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "Unknown"
}

// Scoped tells whether registrations of this family can be narrowed to a
// single account.
func (f Family) Scoped() bool {
	return f == LedgerFamily
}

// EventKind is a concrete event, the family tag selects the source and the
// meaning of the member code.
type EventKind struct {
	family Family
	code   byte
}

// PeerKind returns the kind of the given peer event.
func PeerKind(e network.PeerEvent) EventKind {
	return EventKind{family: PeerFamily, code: byte(e)}
}

// BlockKind returns the kind of the given block event.
func BlockKind(e core.BlockEvent) EventKind {
	return EventKind{family: BlockFamily, code: byte(e)}
}

// TransactionKind returns the kind of the given transaction event.
func TransactionKind(e mempool.TxEvent) EventKind {
	return EventKind{family: TransactionFamily, code: byte(e)}
}

// LedgerKind returns the kind of the given ledger event.
func LedgerKind(e ledger.EntryEvent) EventKind {
	return EventKind{family: LedgerFamily, code: byte(e)}
}

// Family returns the family tag.
func (k EventKind) Family() Family {
	return k.family
}

// Member returns the member name within the family, like "Pushed".
func (k EventKind) Member() string {
	switch k.family {
	case PeerFamily:
		return network.PeerEvent(k.code).String()
	case BlockFamily:
		return core.BlockEvent(k.code).String()
	case TransactionFamily:
		return mempool.TxEvent(k.code).String()
	case LedgerFamily:
		return ledger.EntryEvent(k.code).String()
	}
	return "unknown"
}

// String returns the "<Family>.<Member>" form.
func (k EventKind) String() string {
	return k.family.String() + "." + k.Member()
}

// Catalog returns all known event kinds, grouped by family.
func Catalog() []EventKind {
	var res []EventKind
	for _, e := range network.PeerEvents() {
		res = append(res, PeerKind(e))
	}
	for _, e := range core.BlockEvents() {
		res = append(res, BlockKind(e))
	}
	for _, e := range mempool.TxEvents() {
		res = append(res, TransactionKind(e))
	}
	for _, e := range ledger.EntryEvents() {
		res = append(res, LedgerKind(e))
	}
	return res
}

var kindsByName = func() map[string]EventKind {
	m := make(map[string]EventKind)
	for _, k := range Catalog() {
		m[k.String()] = k
	}
	return m
}()

// lookupKind finds the kind by its family and member names.
func lookupKind(family, member string) (EventKind, bool) {
	k, ok := kindsByName[family+"."+member]
	return k, ok
}

func knownFamily(name string) bool {
	for _, f := range familyNames {
		if f == name {
			return true
		}
	}
	return false
}
