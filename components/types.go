package components

type PanicHandlerFunc func()

type Action uint32

const (
	Shutdown Action = iota + 1
)

// ControlAction is used to communicate with components.
type ControlAction struct {
	Action       Action
	ResponseChan chan error // channel on which the component confirms the action.
}

// ComponentWaiter is a simple interface for use around a wait group.
type ComponentWaiter interface {
	Add()
	Done()
}
