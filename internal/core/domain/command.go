package domain

import "fmt"

const (
	ACTION_TOGGLE           = "toggle"
	ACTION_INCREASE         = "increase"
	ACTION_DECREASE         = "decrease"
	ACTION_SET_MODE         = "set-mode"
	ACTION_SET_EFFECT       = "set-effect"
	ACTION_SET_AC_MODE      = "set-ac-mode"
	ACTION_TOGGLE_RECORDING = "toggle-recording"
	ACTION_TOGGLE_MOTION    = "toggle-motion"
)

type OperationKind int

const (
	OP_TOGGLE OperationKind = iota
	OP_ADJUST
	OP_SET_MODE
	OP_SET_EFFECT
	OP_SET_AC_MODE
)

func (k OperationKind) String() string {
	switch k {
	case OP_TOGGLE:
		return "toggle"
	case OP_ADJUST:
		return "adjust"
	case OP_SET_MODE:
		return "set_mode"
	case OP_SET_EFFECT:
		return "set_effect"
	case OP_SET_AC_MODE:
		return "set_ac_mode"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Operation is a control action resolved against a device type, ready to be
// executed as a sequence of backend calls.
type Operation struct {
	Kind     OperationKind
	DeviceId int
	Name     string
	Delta    float64
	Arg      string
	Toggle   ToggleKind
	Adjust   *AdjustSpec
	Quantity string
}

// CardRequest

type CardRequest interface {
	ActorRequest
	CardId() int
}

type CardRequestMixIn struct {
	ActorRequestMixIn
	DeviceId int
}

func (r CardRequestMixIn) CardId() int {
	return r.DeviceId
}

// Card commands

type CardCommandRequest struct {
	CardRequestMixIn
	Action string
	Value  string
}

type CardCommandResponse struct {
	ActorResponseMixIn
	DeviceId int
	Record   *DeviceRecord
	Card     *CardSnapshot
}

type ReconcileRequest struct {
	CardRequestMixIn
	Record DeviceRecord
}

type GetCardRequest struct {
	CardRequestMixIn
}

type GetCardResponse struct {
	ActorResponseMixIn
	Card *CardSnapshot
}

// ensure interface compliance
var _ CardRequest = (*CardCommandRequest)(nil)
var _ CardRequest = (*ReconcileRequest)(nil)
