// Package codec turns mission actions and control requests into the fixed
// size frames understood by vehicle side decoders.
package codec

// Frame types.
const (
	TypeTask         byte = 0x01
	TypeEnvironment  byte = 0x01
	TypeNotification byte = 0x02
	TypeEvents       byte = 0x03
	TypeCDT          byte = 0x04
)

// CDT subtypes.
const (
	SubtypeStartDiscovery byte = 0x00
	SubtypeStopDiscovery  byte = 0x02
	SubtypeStartPolling   byte = 0x03
	SubtypeStopPolling    byte = 0x04
	SubtypeGetNeighbours  byte = 0x05
	SubtypeSetNeighbours  byte = 0x06
)

// Notification subtypes.
const (
	SubtypeNotifySafetyAction byte = 0x00
	SubtypeNotifyAbortPlan    byte = 0x01
)

// Events and environment subtypes.
const (
	SubtypeSubscribeVehicleEvents byte = 0x00
	SubtypeStateVector            byte = 0x00
	SubtypeStateMission           byte = 0x01
)

// Task subtypes.
const (
	TaskGotoWaypoint      byte = 0x04
	TaskHover             byte = 0x05
	TaskConfigure         byte = 0x06
	TaskFollowTarget      byte = 0x07
	TaskFollowStructure   byte = 0x08
	TaskFollowRow         byte = 0x09
	TaskSpiral            byte = 0x0A
	TaskWait              byte = 0x0B
	TaskTransit           byte = 0x0C
	TaskSurvey            byte = 0x0D
	TaskInspect           byte = 0x0E
	TaskPickup            byte = 0x0F
	TaskGraspObject       byte = 0x10
	TaskSonarAcquisition  byte = 0x11
	TaskCameraAcquisition byte = 0x12
)

// Task report status codes.
const (
	ReportPending    = 0
	ReportRunning    = 1
	ReportCompleted  = 2
	ReportWaiting    = 3
	ReportSuspended  = 4
	ReportPlanned    = 5
	ReportExecFailed = -1
	ReportPlanFailed = -2
	ReportAborted    = -3
	ReportCancelled  = -4
	ReportRejected   = -10
)

// CDT sensor selectors packed by CONFIGURE.
const (
	SensorCamera = 0
	SensorH2S    = 1
	SensorSonar  = 2
	SensorLight  = 3
)

const (
	deltaMask  = 0x3FFFF
	deltaShift = 18

	// START_DISCOVERY parameters, seconds.
	discoveryTime   = 10
	discoveryPeriod = 10
)
