package cards

// pinRule narrows a status entry by the card's PIN configuration.
type pinRule int

const (
	pinAny pinRule = iota
	pinRequired
	pinAbsent
)

// rule allows one action for the listed statuses. A nil types map means the
// action applies to every card type.
type rule struct {
	action Action
	types  map[CardType]bool
	allow  map[CardStatus]pinRule
}

func allStatuses() map[CardStatus]pinRule {
	m := make(map[CardStatus]pinRule, 7)
	for _, s := range CardStatuses() {
		m[s] = pinAny
	}

	return m
}

// rulesTable is the whole permission model. Notable entries: ACTION5 exists
// only on credit cards; ACTION6 needs a PIN and ACTION7 needs the PIN to be
// unset, except on a blocked card where both need the PIN.
var rulesTable = []rule{
	{Action1, nil, map[CardStatus]pinRule{StatusActive: pinAny}},
	{Action2, nil, map[CardStatus]pinRule{StatusInactive: pinAny, StatusActive: pinAny}},
	{Action3, nil, allStatuses()},
	{Action4, nil, allStatuses()},
	{Action5, map[CardType]bool{TypeCredit: true}, allStatuses()},
	{Action6, nil, map[CardStatus]pinRule{
		StatusOrdered:  pinRequired,
		StatusInactive: pinRequired,
		StatusActive:   pinRequired,
		StatusBlocked:  pinRequired,
	}},
	{Action7, nil, map[CardStatus]pinRule{
		StatusOrdered:  pinAbsent,
		StatusInactive: pinAbsent,
		StatusActive:   pinAbsent,
		StatusBlocked:  pinRequired,
	}},
	{Action8, nil, map[CardStatus]pinRule{
		StatusOrdered:  pinAny,
		StatusInactive: pinAny,
		StatusActive:   pinAny,
		StatusBlocked:  pinAny,
	}},
	{Action9, nil, allStatuses()},
	{Action10, nil, map[CardStatus]pinRule{StatusOrdered: pinAny, StatusInactive: pinAny, StatusActive: pinAny}},
	{Action11, nil, map[CardStatus]pinRule{StatusInactive: pinAny, StatusActive: pinAny}},
	{Action12, nil, map[CardStatus]pinRule{StatusOrdered: pinAny, StatusInactive: pinAny, StatusActive: pinAny}},
	{Action13, nil, map[CardStatus]pinRule{StatusOrdered: pinAny, StatusInactive: pinAny, StatusActive: pinAny}},
}

// ActionsFor evaluates the rules table for one card. The result is ordered
// ACTION1 through ACTION13 and is the same for equal inputs.
func ActionsFor(c Card) []Action {
	out := make([]Action, 0, len(rulesTable))

	for _, r := range rulesTable {
		if r.types != nil && !r.types[c.Type] {
			continue
		}

		pr, ok := r.allow[c.Status]
		if !ok {
			continue
		}

		if pr == pinRequired && !c.PinSet {
			continue
		}

		if pr == pinAbsent && c.PinSet {
			continue
		}

		out = append(out, r.action)
	}

	return out
}
