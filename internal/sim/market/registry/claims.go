package registry

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"plotbazaar.io/internal/sim/market/containers"
	"plotbazaar.io/internal/sim/market/model"
	"plotbazaar.io/internal/sim/market/slots"
	"plotbazaar.io/internal/sim/market/traders"
)

type ClaimRequest struct {
	Player    model.PlayerID
	Name      string
	Inventory model.ContainerID
	Pos       model.Vec3
}

// Claim builds a trader for the player on the plot they stand in. When
// player plots are allowed and the player stands on open ground, a plot is
// created there first. The claim cost is taken last, after every check.
func (m *Market) Claim(req ClaimRequest) (*model.Trader, error) {
	if _, ok := m.traders.ByOwner(req.Player); ok {
		return nil, model.Validation(model.AlreadyOwnsTrader, "You already have a shop!")
	}
	plot, inside := m.plotReg.FindContaining(req.Pos)
	switch {
	case inside && plot.Occupied():
		return nil, model.Placement(model.AlreadyOccupied, "This plot already has a shop!")
	case !inside && !m.cfg.AllowPlayerPlots:
		return nil, model.Placement(model.NotInPlot, "You need to be inside a plot to create a shop.")
	case !inside && m.plotReg.WouldOverlap(req.Pos.Snap(), ""):
		return nil, model.Placement(model.WouldOverlap, "")
	}
	cost := m.cfg.ClaimCost
	if cost.ID != "" && cost.Amount > 0 && m.boxes.CountOf(req.Inventory, cost.ID) < cost.Amount {
		return nil, model.Trade(model.InsufficientFunds, "You need %sx %s to claim a plot.",
			humanize.Comma(int64(cost.Amount)), m.names(cost.ID))
	}

	created := false
	if !inside {
		p, err := m.placement.Create(req.Pos, false)
		if err != nil {
			return nil, err
		}
		plot, created = p, true
	}
	t, err := m.buildTrader(req, plot)
	if err != nil {
		if created {
			_ = m.placement.Remove(plot.ID)
		}
		return nil, err
	}
	if cost.ID != "" && cost.Amount > 0 {
		if err := m.boxes.RemoveAmount(req.Inventory, cost.ID, cost.Amount, -1); err != nil {
			m.destroyTrader(t)
			if created {
				_ = m.placement.Remove(plot.ID)
			}
			return nil, model.Validation(model.Internal, fmt.Sprintf("claim cost: %v", err))
		}
	}
	m.log.Info().Str("trader", string(t.ID)).Str("owner", string(t.Owner)).Str("plot", string(plot.ID)).Msg("trader created")
	return t, nil
}

func (m *Market) buildTrader(req ClaimRequest, plot *model.Plot) (*model.Trader, error) {
	t := &model.Trader{
		ID:        model.NewTraderID(),
		Owner:     req.Player,
		OwnerName: req.Name,
		Stand:     model.NewContainerID(),
		Storage:   model.NewContainerID(),
		Host:      model.NewActorID(),
		PlotID:    plot.ID,
		Blocked:   slots.Blocked(),
	}
	t.SetState(model.WaitingForItem)
	if _, err := m.boxes.Create(t.Stand, containers.KindStand, t.Owner, slots.Count); err != nil {
		return nil, model.Validation(model.Internal, err.Error())
	}
	if _, err := m.boxes.Create(t.Storage, containers.KindStorage, t.Owner, slots.Count); err != nil {
		m.boxes.Destroy(t.Stand)
		return nil, model.Validation(model.Internal, err.Error())
	}
	m.fillBlocked(t)
	if err := m.traders.Add(t); err != nil {
		m.boxes.Destroy(t.Stand)
		m.boxes.Destroy(t.Storage)
		return nil, err
	}
	if err := m.placement.Attach(plot.ID, t.ID); err != nil {
		m.traders.Remove(t.ID)
		m.boxes.Destroy(t.Stand)
		m.boxes.Destroy(t.Storage)
		return nil, err
	}
	return t, nil
}

func (m *Market) fillBlocked(t *model.Trader) {
	for _, s := range t.Blocked {
		if !slots.IsBlocked(s) {
			continue
		}
		_ = m.boxes.SetItemAt(t.Stand, s, model.Item{ID: m.cfg.BlockItem, Amount: 1, MaxAmount: 1})
	}
}

// Unclaim destroys the player's trader when stand and storage are empty.
func (m *Market) Unclaim(player model.PlayerID) error {
	t, ok := m.traders.ByOwner(player)
	if !ok {
		return model.Validation(model.NoTrader, "You don't have a shop to remove.")
	}
	if !m.IsEmpty(t) {
		return model.Placement(model.NotEmpty, "Empty your shop and storage first before removing it.")
	}
	m.destroyTrader(t)
	return nil
}

// SetPrice attaches amount units of itemID as the price of the single
// unpriced product and returns the product slot.
func (m *Market) SetPrice(player model.PlayerID, itemID string, amount int) (int, error) {
	t, ok := m.traders.ByOwner(player)
	if !ok {
		return -1, model.Validation(model.NoTrader, "")
	}
	if amount <= 0 {
		return -1, model.Trade(model.InvalidPrice, "The price must be at least 1.")
	}
	if amount > m.cfg.MaxPrice {
		return -1, model.Trade(model.PriceTooHigh, "The price can't be more than %s.", humanize.Comma(int64(m.cfg.MaxPrice)))
	}
	c := m.contents(t)
	slot, err := traders.CanPrice(t, c)
	if err != nil {
		return -1, err
	}
	product, _ := m.boxes.ItemAt(t.Stand, slot)
	if product.ID == itemID {
		return -1, model.Trade(model.SamePrefabAsProduct, "You can't sell %s for itself.", m.names(itemID))
	}
	cost, _ := slots.CostFor(slot)
	if err := m.boxes.SetItemAt(t.Stand, cost, model.Item{ID: itemID, Amount: amount, MaxAmount: amount}); err != nil {
		return -1, model.Validation(model.Internal, err.Error())
	}
	m.boxes.LockAmounts(t.Stand)
	traders.PriceAttached(t, m.contents(t))
	return slot, nil
}

// OpenShop opens the player's trader for business.
func (m *Market) OpenShop(player model.PlayerID) (*model.Trader, error) {
	t, ok := m.traders.ByOwner(player)
	if !ok {
		return nil, model.Validation(model.NoTrader, "")
	}
	return t, traders.Open(t, m.contents(t))
}

// CloseShop puts the player's trader back in editing mode.
func (m *Market) CloseShop(player model.PlayerID) (*model.Trader, error) {
	t, ok := m.traders.ByOwner(player)
	if !ok {
		return nil, model.Validation(model.NoTrader, "")
	}
	return t, traders.Close(t)
}
