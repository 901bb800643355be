package domain

type SceneAction struct {
	DeviceId int      `json:"device_id"`
	State    string   `json:"state,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Mode     string   `json:"mode,omitempty"`
}

type Scene struct {
	Id          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Icon        string        `json:"icon,omitempty"`
	Actions     []SceneAction `json:"actions,omitempty"`
}

type DeviceEnergy struct {
	Name  string  `json:"name"`
	Power float64 `json:"power"`
}

type EnergyReport struct {
	TotalPower  float64        `json:"total_power"`
	DailyEnergy float64        `json:"daily_energy"`
	Devices     []DeviceEnergy `json:"devices"`
}
