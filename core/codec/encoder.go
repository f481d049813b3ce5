package codec

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kilianp07/mtrr/core/logger"
	"github.com/kilianp07/mtrr/core/model"
)

// ErrMissingArea is returned when an action does not carry the positions its
// task layout reads.
var ErrMissingArea = errors.New("action area too short for task layout")

// Encoder packs actions into task frames. Coordinates are sent as deltas to
// the mission origin, which is set at mission start.
type Encoder struct {
	mu        sync.RWMutex
	originLat float64
	originLon float64
	log       logger.Logger
}

// NewEncoder returns an encoder with the given origin.
func NewEncoder(originLat, originLon float64, log logger.Logger) *Encoder {
	return &Encoder{originLat: originLat, originLon: originLon, log: log}
}

// SetOrigin changes the reference point used for coordinate deltas.
func (e *Encoder) SetOrigin(lat, lon float64) {
	e.mu.Lock()
	e.originLat, e.originLon = lat, lon
	e.mu.Unlock()
}

// Origin returns the current reference latitude and longitude.
func (e *Encoder) Origin() (lat, lon float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.originLat, e.originLon
}

// point holds the scaled fields of one area position.
type point struct {
	alt, depth int64
	dLat, dLon int32
}

func (e *Encoder) point(p model.Position) point {
	lat, lon := e.Origin()
	return point{
		alt:   int64(int32(p.Altitude * 10)),
		depth: int64(int32(p.Depth * 10)),
		dLat:  Delta(p.Latitude, lat),
		dLon:  Delta(p.Longitude, lon),
	}
}

// altDepth packs altitude<<16|depth. The shift is done on 64 bits and
// truncated, matching vehicle decoders.
func (p point) altDepth() int32 {
	return int32(p.alt<<16 | p.depth)
}

// Delta scales a coordinate difference by 1e6 and masks it to the 18-bit
// two's complement field.
func Delta(coord, origin float64) int32 {
	return int32(math.Round((coord-origin)*1e6)) & deltaMask
}

func motionWord(yaw, roll, pitch, speed int32) int32 {
	return yaw<<25 | (roll&0xFF)<<17 | (pitch&0xFF)<<9 | speed
}

func scaled(v float64) int32 { return int32(v * 10) }

// EncodeTask builds the task frame for an action. Unknown task types are
// logged and produce an empty payload.
func (e *Encoder) EncodeTask(a model.Action, seq byte) (model.Frame, error) {
	f := model.Frame{
		Type:      TypeTask,
		Subtype:   a.Task.TypeID,
		VehicleID: byte(a.VehicleID),
		SeqOp:     seq,
	}

	yaw := scaled(a.Bearing.Yaw)
	roll := scaled(a.Bearing.Roll)
	pitch := scaled(a.Bearing.Pitch)
	speed := scaled(a.Speed)

	need := areaPoints(a.Task.TypeID)
	if len(a.Area) < need {
		return f, fmt.Errorf("%w: %s needs %d positions, got %d", ErrMissingArea, TaskName(a.Task.TypeID), need, len(a.Area))
	}

	d := &f.Data
	switch a.Task.TypeID {
	case TaskGotoWaypoint, TaskTransit:
		p := e.point(a.Area[1])
		d[0] = motionWord(yaw, roll, pitch, speed)
		d[1] = p.altDepth()
		d[2] = p.dLat
		d[3] = p.dLon
	case TaskHover, TaskWait:
		p := e.point(a.Area[0])
		var radius, clockwise int32
		d[0] = motionWord(yaw, roll, pitch, speed)
		d[1] = p.altDepth()
		d[2] = radius<<deltaShift | p.dLat
		d[3] = clockwise<<deltaShift | p.dLon
	case TaskInspect:
		p := e.point(a.Area[0])
		radius := int32(a.Range)
		clockwise := int32(1)
		pitch = int32(a.TimeLapse)
		d[0] = motionWord(yaw, roll, pitch, speed)
		d[1] = p.altDepth()
		d[2] = radius<<deltaShift | p.dLat
		d[3] = clockwise<<deltaShift | p.dLon
	case TaskFollowStructure:
		p := e.point(a.Area[0])
		var azimuth int32
		d[0] = motionWord(yaw, roll, pitch, speed)
		d[1] = p.altDepth()
		d[2] = azimuth<<deltaShift | p.dLat
		d[3] = p.dLon
	case TaskFollowRow:
		p := e.point(a.Area[0])
		var azimuth, length int32
		d[0] = speed
		d[1] = p.altDepth()
		d[2] = azimuth<<deltaShift | p.dLat
		d[3] = length<<deltaShift | p.dLon
	case TaskConfigure:
		var on int32
		if strings.HasPrefix(a.Task.Description, "ON") {
			on = 1
		}
		d[0] = on<<2 | configureSensor(a.Task.RequiredEquipment)
	case TaskFollowTarget:
		var target int32
		d[0] = target
	case TaskSurvey:
		p0, p1 := e.point(a.Area[0]), e.point(a.Area[1])
		p2, p3 := e.point(a.Area[2]), e.point(a.Area[3])
		var sensor, azimuth, length int32
		d[0] = p0.altDepth()
		d[1] = sensor<<24 | azimuth<<deltaShift | p0.dLat
		d[2] = length<<deltaShift | p0.dLon
		d[3] = speed<<deltaShift | p1.dLat
		d[4] = p1.dLon
		d[5] = p2.dLat
		d[6] = p2.dLon
		d[7] = p3.dLat
		d[8] = p3.dLon
	case TaskPickup, TaskGraspObject:
		p := e.point(a.Area[0])
		d[0] = yaw<<26 | (roll&0xFF)<<deltaShift | p.dLat
		d[1] = p.altDepth()
		d[2] = (pitch&0xFF)<<deltaShift | p.dLon
	case TaskSonarAcquisition:
	case TaskCameraAcquisition:
		var delay, rng int32
		d[0] = delay<<11 | rng
	default:
		if e.log != nil {
			e.log.Errorf("cannot encode action %s: task type %d not recognized", a.Label(), a.Task.TypeID)
		}
	}
	if e.log != nil {
		e.log.Debugw("encoded task frame", map[string]any{
			"action":  a.ID,
			"task":    TaskName(a.Task.TypeID),
			"vehicle": a.VehicleID,
			"seq_op":  seq,
			"data":    d[:4],
		})
	}
	return f, nil
}

// areaPoints is the number of area positions a task layout reads.
func areaPoints(task byte) int {
	switch task {
	case TaskGotoWaypoint, TaskTransit:
		return 2
	case TaskSurvey:
		return 4
	case TaskHover, TaskWait, TaskInspect, TaskFollowStructure, TaskFollowRow, TaskPickup, TaskGraspObject:
		return 1
	default:
		return 0
	}
}

func configureSensor(required []model.EquipmentType) int32 {
	if len(required) == 0 {
		return SensorCamera
	}
	switch required[0] {
	case model.EquipmentH2S:
		return SensorH2S
	case model.EquipmentSonar:
		return SensorSonar
	case model.EquipmentLight:
		return SensorLight
	default:
		return SensorCamera
	}
}
