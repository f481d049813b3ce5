package codec

import "github.com/kilianp07/mtrr/core/model"

// StateVectorRequest asks a vehicle to report its state every refresh seconds.
func StateVectorRequest(vehicleID, seq byte, refresh int32) model.Frame {
	f := model.Frame{Type: TypeEnvironment, Subtype: SubtypeStateVector, VehicleID: vehicleID, SeqOp: seq}
	f.Data[0] = refresh
	return f
}

// EventsSubscription subscribes the ground station to a vehicle's events.
func EventsSubscription(vehicleID, seq byte) model.Frame {
	return model.Frame{Type: TypeEvents, Subtype: SubtypeSubscribeVehicleEvents, VehicleID: vehicleID, SeqOp: seq}
}

// SetNeighbours tells the CDT which AUVs take part in the mission. Only the
// first DataWords ids fit in the frame.
func SetNeighbours(auvIDs []int, seq byte) model.Frame {
	f := model.Frame{Type: TypeCDT, Subtype: SubtypeSetNeighbours, SeqOp: seq}
	for i, id := range auvIDs {
		if i == model.DataWords {
			break
		}
		f.Data[i] = int32(id)
	}
	return f
}

// GetNeighbours asks the CDT for the neighbour table.
func GetNeighbours(seq byte) model.Frame {
	return model.Frame{Type: TypeCDT, Subtype: SubtypeGetNeighbours, SeqOp: seq}
}

// StartDiscovery asks the CDT to run acoustic discovery.
func StartDiscovery(seq byte) model.Frame {
	f := model.Frame{Type: TypeCDT, Subtype: SubtypeStartDiscovery, SeqOp: seq}
	f.Data[0] = discoveryTime<<6 | discoveryPeriod
	return f
}

// Notification builds an abort (soft) or safety action (hard) notification.
func Notification(vehicleID, seq byte, hard bool) model.Frame {
	sub := SubtypeNotifyAbortPlan
	if hard {
		sub = SubtypeNotifySafetyAction
	}
	return model.Frame{Type: TypeNotification, Subtype: sub, VehicleID: vehicleID, SeqOp: seq}
}
