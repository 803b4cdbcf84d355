package validate

import (
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/trade"
)

// Kind is the inventory mutation a player asked for.
type Kind uint8

const (
	KindMove Kind = iota
	KindMoveAll
	KindDrop
	KindSplit
	KindMerge
	KindEquip
	KindUnequip
	KindSort
	KindSortAll
)

var kindNames = map[Kind]string{
	KindMove:    "move",
	KindMoveAll: "move_all",
	KindDrop:    "drop",
	KindSplit:   "split",
	KindMerge:   "merge",
	KindEquip:   "equip",
	KindUnequip: "unequip",
	KindSort:    "sort",
	KindSortAll: "sort_all",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Event is one intercepted inventory mutation. Slots are -1 when unspecified.
type Event struct {
	Kind      Kind
	Actor     model.PlayerID
	ActorName string
	Inventory model.ContainerID // the actor's own inventory, used to pay
	From      model.ContainerID
	To        model.ContainerID
	FromSlot  int
	ToSlot    int
	ItemID    string
	Amount    int
}

type Action uint8

const (
	ActionPassThrough Action = iota
	ActionWithdraw
	ActionAddProduct
	ActionRemoveProduct
	ActionPurchase
	ActionGesture
	ActionReject
)

func (a Action) String() string {
	return [...]string{"pass_through", "withdraw", "add_product", "remove_product", "purchase", "gesture", "reject"}[a]
}

// Verdict is the decision for one Event. When Apply is false the host must
// discard the mutation: it was either rejected or already carried out here.
type Verdict struct {
	Action  Action
	Apply   bool
	Trader  *model.Trader
	ToSlot  int
	Err     error
	Status  model.Status
	Notice  string
	Receipt *trade.Receipt
}

func (v Verdict) Rejected() bool { return v.Err != nil }
