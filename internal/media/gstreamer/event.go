//go:build linux

package gstreamer

import (
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/smazurov/videofx/internal/media"
)

// event wraps one bus message. The binding unreferences the message once
// the wrapper is dropped, so Release only detaches it.
type event struct {
	kind media.EventKind
	text string
	msg  *gst.Message
}

func newEvent(msg *gst.Message) *event {
	ev := &event{msg: msg, kind: media.EventOther}
	switch msg.Type() {
	case gst.MessageEOS:
		ev.kind = media.EventComplete
		ev.text = "end of stream"
	case gst.MessageError:
		gerr := msg.ParseError()
		ev.text = gerr.Error()
		ev.kind = media.EventError
		if deviceLost(gerr.Error()) || deviceLost(gerr.DebugString()) {
			ev.kind = media.EventDeviceLost
		}
	case gst.MessageStateChanged:
		old, next := msg.ParseStateChanged()
		ev.kind = media.EventStateChange
		ev.text = msg.Source() + ": " + old.String() + " -> " + next.String()
	default:
		ev.text = msg.TypeName()
	}
	return ev
}

func (e *event) Kind() media.EventKind { return e.kind }
func (e *event) Message() string       { return e.text }

func (e *event) Release() {
	e.msg = nil
}
