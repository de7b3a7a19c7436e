package types

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// EncodedFrame is one compressed image plus the wall-clock time (seconds) it
// became available. Data is shared by reference and must not be modified
// after the frame is published.
type EncodedFrame struct {
	Seq       uint64
	Data      []byte
	Timestamp float64
	Width     int
	Height    int
}

const NoFrameMessage = "No frame available"

// FrameReply is the get_frame result: either a frame or Absent.
type FrameReply struct {
	Absent bool
	Image  []byte
	Time   float64
}

func NewFrameReply(frame EncodedFrame, ok bool) FrameReply {
	if !ok {
		return FrameReply{Absent: true}
	}
	return FrameReply{Image: frame.Data, Time: frame.Timestamp}
}

type framePresent struct {
	Image     string  `json:"image"`
	Timestamp float64 `json:"timestamp"`
}

type frameAbsent struct {
	Error string `json:"error"`
}

func (r FrameReply) MarshalJSON() ([]byte, error) {
	if r.Absent {
		return json.Marshal(frameAbsent{Error: NoFrameMessage})
	}
	return json.Marshal(framePresent{
		Image:     base64.StdEncoding.EncodeToString(r.Image),
		Timestamp: r.Time,
	})
}

// UnmarshalJSON branches on payload shape: an "image" field means a frame,
// anything else is treated as absent.
func (r *FrameReply) UnmarshalJSON(data []byte) error {
	var raw struct {
		Image     *string  `json:"image"`
		Timestamp *float64 `json:"timestamp"`
		Error     string   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Image == nil || *raw.Image == "" {
		*r = FrameReply{Absent: true}
		return nil
	}
	if raw.Timestamp == nil {
		return errors.New("frame reply missing timestamp")
	}
	image, err := base64.StdEncoding.DecodeString(*raw.Image)
	if err != nil {
		return err
	}
	*r = FrameReply{Image: image, Time: *raw.Timestamp}
	return nil
}

type TimeReply struct {
	ServerTime float64 `json:"server_time"`
}

// StatusMessage is pushed to websocket clients on every UI tick.
type StatusMessage struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	Metrics map[string]any `json:"metrics"`
}
