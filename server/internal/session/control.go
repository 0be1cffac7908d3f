package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Action is the verb of a control message.
type Action string

// Supported actions.
const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionPublish     Action = "publish"
)

// ErrMalformed marks a control message that could not be applied.
var ErrMalformed = errors.New("session: malformed control message")

// Role configures one endpoint kind (device, app, audio, camera).
type Role struct {
	Name    string
	Path    string
	Actions []Action
}

// Allows reports whether the role accepts action a.
func (r Role) Allows(a Action) bool {
	return slices.Contains(r.Actions, a)
}

// Control is one decoded control message.
type Control struct {
	Action  Action
	Topic   string
	Message string // publish only
}

type wireControl struct {
	Action  Action          `json:"action"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// ParseControl decodes a control message. A publish message may carry a
// JSON string (delivered unquoted) or any other JSON value (delivered as its
// raw JSON text). Every failure wraps ErrMalformed.
func ParseControl(text string) (Control, error) {
	var w wireControl
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return Control{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Action {
	case ActionSubscribe, ActionUnsubscribe, ActionPublish:
	case "":
		return Control{}, fmt.Errorf("%w: missing action", ErrMalformed)
	default:
		return Control{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, w.Action)
	}
	if w.Topic == "" {
		return Control{}, fmt.Errorf("%w: missing topic", ErrMalformed)
	}

	c := Control{Action: w.Action, Topic: w.Topic}
	if w.Action != ActionPublish {
		return c, nil
	}

	if len(w.Message) == 0 || string(w.Message) == "null" {
		return Control{}, fmt.Errorf("%w: publish without message", ErrMalformed)
	}
	var s string
	if err := json.Unmarshal(w.Message, &s); err == nil {
		c.Message = s
	} else {
		c.Message = string(w.Message)
	}
	return c, nil
}
