package domain

// ATP is the available-to-promise picture of a key for one demand quantity.
type ATP struct {
	OnHand     int
	Reserved   int
	Available  int
	CanFulfill bool
	Shortage   int
}

func ComputeATP(balance StockBalance, requiredQty int) ATP {
	available := balance.Available()
	shortage := requiredQty - available
	if shortage < 0 {
		shortage = 0
	}
	return ATP{
		OnHand:     balance.QtyOnHand,
		Reserved:   balance.QtyReserved,
		Available:  available,
		CanFulfill: available >= requiredQty,
		Shortage:   shortage,
	}
}
