package model

import "fmt"

type TraderState uint8

const (
	WaitingForItem TraderState = iota
	WaitingForCost
	ReceivedCost
	Ready
)

func (s TraderState) String() string {
	switch s {
	case WaitingForItem:
		return "WaitingForItem"
	case WaitingForCost:
		return "WaitingForCost"
	case ReceivedCost:
		return "ReceivedCost"
	case Ready:
		return "Ready"
	default:
		return fmt.Sprintf("TraderState(%d)", uint8(s))
	}
}

func ParseTraderState(s string) (TraderState, bool) {
	for st := WaitingForItem; st <= Ready; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return WaitingForItem, false
}

// Trader is a player's shop: a stand holding the offers, a storage holding the
// proceeds, and the host actor players interact with.
type Trader struct {
	ID        TraderID
	Owner     PlayerID
	OwnerName string
	State     TraderState
	Stand     ContainerID
	Storage   ContainerID
	Host      ActorID
	PlotID    PlotID
	Name      string
	Blocked   []int
}

// SetState moves the trader to s and refreshes its display name.
func (t *Trader) SetState(s TraderState) {
	t.State = s
	t.Name = ShopName(t.OwnerName, s)
}

// Private reports whether only the owner may browse the stand.
func (t *Trader) Private() bool { return t.State != Ready }

func ShopName(owner string, s TraderState) string {
	if s == Ready {
		return owner + "'s Shop"
	}
	return owner + "'s Shop (Closed)"
}
