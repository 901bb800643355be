package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
	ACTOR_ID_CARD_PREFIX  = "card-"
)

type ListDevicesRequest struct {
	ActorRequestMixIn
}

type ListDevicesResponse struct {
	ActorResponseMixIn
	Devices []DeviceRecord
}

type GetEnergyResponse struct {
	ActorResponseMixIn
	Energy *EnergyReport
}

// RefreshRequest forces an immediate poll.
type RefreshRequest struct {
	ActorRequestMixIn
}

type GetCardsRequest struct {
	ActorRequestMixIn
}

type GetCardsResponse struct {
	ActorResponseMixIn
	Cards []CardSnapshot
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Buttons []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
