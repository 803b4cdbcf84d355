package model

import "github.com/google/uuid"

type (
	PlotID      string
	TraderID    string
	PlayerID    string
	ContainerID string
	ActorID     string
)

func NewPlotID() PlotID           { return PlotID("plot_" + uuid.NewString()) }
func NewTraderID() TraderID       { return TraderID("trader_" + uuid.NewString()) }
func NewContainerID() ContainerID { return ContainerID("box_" + uuid.NewString()) }
func NewActorID() ActorID         { return ActorID("actor_" + uuid.NewString()) }

// Item is the content of one container slot. MaxAmount caps how many units
// the slot accepts; zero means the item's natural stack size.
type Item struct {
	ID        string `json:"id"`
	Amount    int    `json:"amount"`
	MaxAmount int    `json:"max_amount,omitempty"`
}

func (i Item) Empty() bool { return i.ID == "" || i.Amount <= 0 }
