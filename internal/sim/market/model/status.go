package model

// Status is the short floating text shown above an actor after an action.
type Status string

const (
	StatusDisabled        Status = "Disabled"
	StatusEnabled         Status = "Enabled"
	StatusDone            Status = "Done"
	StatusCannotDo        Status = "CannotDo"
	StatusCannotMove      Status = "CannotMove"
	StatusReadyToChange   Status = "ReadyToChange"
	StatusAlreadyAssigned Status = "AlreadyAssigned"
	StatusPrivate         Status = "Private"
	StatusFree            Status = "Free"
	StatusOpen            Status = "Open"
	StatusClose           Status = "Close"
)

// StatusFor picks the floating status that accompanies a rejection.
func StatusFor(err error) Status {
	code, ok := CodeOf(err)
	if !ok {
		return StatusCannotDo
	}
	switch code {
	case CannotMove:
		return StatusCannotMove
	case Disabled:
		return StatusDisabled
	case AlreadyAssigned:
		return StatusAlreadyAssigned
	case Closed:
		return StatusPrivate
	default:
		return StatusCannotDo
	}
}
