package model

// DataWords is the fixed number of payload words carried by every frame.
const DataWords = 15

// Frame is the unit exchanged with vehicles: a four byte header and a fixed
// payload of signed 32-bit words holding bit-packed fields.
type Frame struct {
	Type      byte
	Subtype   byte
	VehicleID byte
	SeqOp     byte
	Data      [DataWords]int32
}

// Report is an inbound frame received from a vehicle or from the CDT, along
// with the side fields the transport carries next to the frame.
type Report struct {
	MissionID   int     `json:"mission_id"`
	Type        byte    `json:"type"`
	Subtype     byte    `json:"subtype"`
	VehicleID   byte    `json:"vid"`
	SeqOp       byte    `json:"seq_op"`
	Status      int     `json:"status"`
	Result      int     `json:"result"`
	EpochMS     int64   `json:"epoch_ms"`
	EventID     int     `json:"event_id,omitempty"`
	ErrorID     int     `json:"error_id,omitempty"`
	Description string  `json:"description,omitempty"`
	Data        []int32 `json:"data,omitempty"`
}

// StateVector is a processed environment report for one vehicle.
type StateVector struct {
	MissionID        int     `json:"mission_id"`
	VehicleID        int     `json:"vid"`
	SeqOp            byte    `json:"seq_op"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Altitude         float64 `json:"altitude"`
	Depth            float64 `json:"depth"`
	Pitch            float64 `json:"pitch"`
	Roll             float64 `json:"roll"`
	Yaw              float64 `json:"yaw"`
	Speed            float64 `json:"speed"`
	RemainingBattery float64 `json:"remaining_battery"`
	TimeMS           int64   `json:"time_ms"`
	Result           int     `json:"result"`
	Concentration    float64 `json:"concentration,omitempty"`
}
