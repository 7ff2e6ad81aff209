package models

// DeviceType classifies a controllable unit.
type DeviceType string

const (
	DeviceAC          DeviceType = "aircon"
	DeviceFloorHeater DeviceType = "floorheater"
	DeviceFuelCell    DeviceType = "fuelcell"
	DeviceBath        DeviceType = "bath"
)

// DeviceDescriptor is the static identity of one controllable unit. The
// appliance's topology is assumed stable for the process lifetime, so these
// are fixed tables, never mutated.
type DeviceDescriptor struct {
	NodeID      string     `json:"nodeId"`
	EOJ         string     `json:"eoj"`
	Type        DeviceType `json:"type"`
	DefaultName string     `json:"defaultName"`
}

// Key returns the identifier the nickname map is keyed by.
func (d DeviceDescriptor) Key() string { return d.NodeID + "_" + d.EOJ }

// ACStatus is the air-conditioner specific slice of a device snapshot.
// IndoorTempC/OutdoorTempC/Humidity come from the group listing; Mode,
// TargetTempC and FanSpeed from the per-unit detail fetch. A failed detail
// fetch leaves those three at their zero values.
type ACStatus struct {
	IndoorTempC  float64 `json:"indoor_temp_c"`
	OutdoorTempC float64 `json:"outdoor_temp_c"`
	Humidity     float64 `json:"humidity"`
	Mode         string  `json:"mode,omitempty"`
	TargetTempC  float64 `json:"target_temp_c,omitempty"`
	FanSpeed     string  `json:"fan_speed,omitempty"`
}

// DeviceStatus is the runtime snapshot of one device, replaced wholesale on
// each fetch. Name is the nickname when one is set, the default name
// otherwise.
type DeviceStatus struct {
	NodeID      string     `json:"nodeId"`
	EOJ         string     `json:"eoj"`
	Type        DeviceType `json:"type"`
	Name        string     `json:"name"`
	Operating   bool       `json:"operating"`
	StateLabel  string     `json:"state_label"`
	ButtonLabel string     `json:"button_label"`
	AC          *ACStatus  `json:"ac,omitempty"`
	HeaterLevel int        `json:"heater_level,omitempty"` // floor heater, 1..9
}

// Key mirrors DeviceDescriptor.Key for status rows.
func (s DeviceStatus) Key() string { return s.NodeID + "_" + s.EOJ }
