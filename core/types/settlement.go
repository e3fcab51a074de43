package types

// ValueLeg is one balance movement inside a multi-leg settlement. A leg from
// an address to itself is validated against the source balance but nets to
// zero.
type ValueLeg struct {
	From   Address
	To     Address
	Amount uint64
}

// ItemLeg is one item custody movement inside a multi-leg settlement.
type ItemLeg struct {
	Item ItemID
	From Address
	To   Address
}
