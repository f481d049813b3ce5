package codec

import "fmt"

var taskNames = map[byte]string{
	TaskGotoWaypoint:      "GOTO_WAYPOINT",
	TaskHover:             "HOVER",
	TaskConfigure:         "CONFIGURE",
	TaskFollowTarget:      "FOLLOW_TARGET",
	TaskFollowStructure:   "FOLLOW_STRUCTURE",
	TaskFollowRow:         "FOLLOW ROW",
	TaskSpiral:            "SPIRAL",
	TaskWait:              "WAIT",
	TaskTransit:           "TRANSIT",
	TaskSurvey:            "SURVEY",
	TaskInspect:           "INSPECT",
	TaskPickup:            "PICKUP",
	TaskGraspObject:       "GRASP_OBJECT",
	TaskSonarAcquisition:  "SONAR_ACQUISITION",
	TaskCameraAcquisition: "CAMERA_ACQUISITION",
}

var statusNames = map[int]string{
	ReportPending:    "PENDING / NOT STARTED",
	ReportRunning:    "RUNNING",
	ReportCompleted:  "COMPLETED",
	ReportWaiting:    "WAITING",
	ReportSuspended:  "SUSPENDED",
	ReportPlanned:    "PLANNED",
	ReportExecFailed: "EXEC_FAILED",
	ReportPlanFailed: "PLAN_FAILED",
	ReportAborted:    "ABORTED",
	ReportCancelled:  "CANCELLED",
	ReportRejected:   "REJECTED",
}

var cdtNames = map[byte]string{
	SubtypeStartDiscovery: "START_DISCOVERY",
	SubtypeStopDiscovery:  "STOP_DISCOVERY",
	SubtypeStartPolling:   "START_POLLING",
	SubtypeStopPolling:    "STOP_POLLING",
	SubtypeSetNeighbours:  "SET_NEIGHBOURS",
	SubtypeGetNeighbours:  "GET_NEIGHBOURS",
}

// TaskName returns the human name of a task subtype.
func TaskName(subtype byte) string {
	if n, ok := taskNames[subtype]; ok {
		return n
	}
	return "UNKNOWN TASK TYPE"
}

// StatusName returns the human name of a task report code.
func StatusName(code int) string {
	if n, ok := statusNames[code]; ok {
		return n
	}
	return "UNKNOWN STATUS TYPE"
}

// SubtypeName names a control subtype for log lines.
func SubtypeName(frameType, subtype byte) string {
	if frameType == TypeCDT {
		if n, ok := cdtNames[subtype]; ok {
			return n
		}
	}
	return fmt.Sprintf("subtype %d", subtype)
}
