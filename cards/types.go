// Package cards implements the card-actions domain: card records, the static
// permission rules, and the lookup service that emits domain events.
package cards

// CardType is the product family a card belongs to.
type CardType string

const (
	TypePrepaid CardType = "PREPAID"
	TypeDebit   CardType = "DEBIT"
	TypeCredit  CardType = "CREDIT"
)

// CardTypes returns every card type in declaration order.
func CardTypes() []CardType {
	return []CardType{TypePrepaid, TypeDebit, TypeCredit}
}

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	StatusOrdered    CardStatus = "ORDERED"
	StatusInactive   CardStatus = "INACTIVE"
	StatusActive     CardStatus = "ACTIVE"
	StatusRestricted CardStatus = "RESTRICTED"
	StatusBlocked    CardStatus = "BLOCKED"
	StatusExpired    CardStatus = "EXPIRED"
	StatusClosed     CardStatus = "CLOSED"
)

// CardStatuses returns every status in lifecycle order.
func CardStatuses() []CardStatus {
	return []CardStatus{
		StatusOrdered,
		StatusInactive,
		StatusActive,
		StatusRestricted,
		StatusBlocked,
		StatusExpired,
		StatusClosed,
	}
}

// Action is one of the fixed permissions a card may carry.
type Action string

const (
	Action1  Action = "ACTION1"
	Action2  Action = "ACTION2"
	Action3  Action = "ACTION3"
	Action4  Action = "ACTION4"
	Action5  Action = "ACTION5"
	Action6  Action = "ACTION6"
	Action7  Action = "ACTION7"
	Action8  Action = "ACTION8"
	Action9  Action = "ACTION9"
	Action10 Action = "ACTION10"
	Action11 Action = "ACTION11"
	Action12 Action = "ACTION12"
	Action13 Action = "ACTION13"
)

// Card is an immutable card record.
type Card struct {
	Number string
	Owner  string
	Type   CardType
	Status CardStatus
	PinSet bool
}
