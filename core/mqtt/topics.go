package mqtt

import "fmt"

// Channel is one of the two links to the fleet.
type Channel string

const (
	ChannelIP       Channel = "IP"
	ChannelAcoustic Channel = "ACOUSTIC"
)

// Channels lists both links in dispatch order.
var Channels = []Channel{ChannelIP, ChannelAcoustic}

// TopicCDT carries SET_NEIGHBOURS, GET_NEIGHBOURS and START_DISCOVERY.
const TopicCDT = "request_CDT"

// TopicReportCDT carries discovery responses.
const TopicReportCDT = "REPORT_CDT"

// TaskTopic is where task frames for a vehicle are published.
func TaskTopic(ch Channel, vehicleID int) string {
	return fmt.Sprintf("REQUEST_TASK_%s_%d", ch, vehicleID)
}

// EnvironmentTopic is where state vector requests are published.
func EnvironmentTopic(ch Channel) string {
	return fmt.Sprintf("REQUEST_ENVIRONMENT_%s", ch)
}

// NotifyTopic is where abort notifications for a vehicle are published.
func NotifyTopic(ch Channel, vehicleID int) string {
	return fmt.Sprintf("NOTIFY_%s_%d", ch, vehicleID)
}

// EventsTopic is where event subscriptions are published.
func EventsTopic(ch Channel) string {
	return fmt.Sprintf("REQUEST_EVENTS_%s", ch)
}

// ReportTaskTopic carries task reports from vehicles.
func ReportTaskTopic(ch Channel) string { return fmt.Sprintf("REPORT_TASK_%s", ch) }

// ReportEventsTopic carries vehicle events.
func ReportEventsTopic(ch Channel) string { return fmt.Sprintf("REPORT_EVENTS_%s", ch) }

// ReportEnvironmentTopic carries state vectors.
func ReportEnvironmentTopic(ch Channel) string {
	return fmt.Sprintf("REPORT_ENVIRONMENT_%s", ch)
}
