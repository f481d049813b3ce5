package mqtt

import "testing"

func TestTopics(t *testing.T) {
	cases := []struct{ got, want string }{
		{TaskTopic(ChannelIP, 3), "REQUEST_TASK_IP_3"},
		{TaskTopic(ChannelAcoustic, 12), "REQUEST_TASK_ACOUSTIC_12"},
		{EnvironmentTopic(ChannelAcoustic), "REQUEST_ENVIRONMENT_ACOUSTIC"},
		{NotifyTopic(ChannelIP, 1), "NOTIFY_IP_1"},
		{EventsTopic(ChannelIP), "REQUEST_EVENTS_IP"},
		{ReportTaskTopic(ChannelAcoustic), "REPORT_TASK_ACOUSTIC"},
		{ReportEnvironmentTopic(ChannelIP), "REPORT_ENVIRONMENT_IP"},
		{ReportEventsTopic(ChannelAcoustic), "REPORT_EVENTS_ACOUSTIC"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("got %s want %s", c.got, c.want)
		}
	}
}
