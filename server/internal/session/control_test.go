package session

import (
	"errors"
	"testing"
)

func TestParseControl(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Control
	}{
		{"subscribe", `{"action":"subscribe","topic":"sensor/42"}`, Control{Action: ActionSubscribe, Topic: "sensor/42"}},
		{"unsubscribe", `{"action":"unsubscribe","topic":"cam/1"}`, Control{Action: ActionUnsubscribe, Topic: "cam/1"}},
		{"publish string", `{"action":"publish","topic":"t","message":"hello"}`, Control{Action: ActionPublish, Topic: "t", Message: "hello"}},
		{"publish object kept raw", `{"action":"publish","topic":"t","message":{"temp":21}}`, Control{Action: ActionPublish, Topic: "t", Message: `{"temp":21}`}},
		{"publish number kept raw", `{"action":"publish","topic":"t","message":100}`, Control{Action: ActionPublish, Topic: "t", Message: "100"}},
		{"extra fields ignored", `{"action":"subscribe","topic":"t","qos":1}`, Control{Action: ActionSubscribe, Topic: "t"}},
		{"subscribe ignores message", `{"action":"subscribe","topic":"t","message":"x"}`, Control{Action: ActionSubscribe, Topic: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseControl(tt.in)
			if err != nil {
				t.Fatalf("ParseControl: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseControl_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `subscribe sensor/42`},
		{"empty", ``},
		{"array", `[1,2]`},
		{"null", `null`},
		{"missing action", `{"topic":"t"}`},
		{"unknown action", `{"action":"delete","topic":"t"}`},
		{"missing topic", `{"action":"subscribe"}`},
		{"empty topic", `{"action":"subscribe","topic":""}`},
		{"topic wrong type", `{"action":"subscribe","topic":42}`},
		{"publish without message", `{"action":"publish","topic":"t"}`},
		{"publish null message", `{"action":"publish","topic":"t","message":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseControl(tt.in)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestRole_Allows(t *testing.T) {
	app := Role{Name: "app", Actions: []Action{ActionSubscribe, ActionUnsubscribe}}
	if !app.Allows(ActionSubscribe) {
		t.Error("app should allow subscribe")
	}
	if app.Allows(ActionPublish) {
		t.Error("app should not allow publish")
	}
}
