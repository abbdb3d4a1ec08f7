package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"depthview-go/internal/types"
)

const (
	MessageStart  = "start"
	MessageImage  = "image"
	MessageStatus = "status"
	MessageEnd    = "end"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Message is one decoded sensor stream message.
type Message struct {
	Type      string
	SeriesID  string
	Geometry  types.FrameGeometry
	Image     Image
	Available bool
}

type Image struct {
	ImageID int
	Meta    types.FrameMeta
	Width   int
	Height  int
	// BytesPerSample is the element size of Data.
	BytesPerSample int
	Data           []byte
}

func (img Image) Geometry() types.FrameGeometry {
	return types.FrameGeometry{Width: img.Width, Height: img.Height, BytesPerSample: img.BytesPerSample}
}

// DecodeMessage decodes one wire message. Messages are CBOR maps:
//
//	{"type":"start","series_id":s,"width":w,"height":h,"bytes_per_sample":b}
//	{"type":"image","series_id":s,"image_id":n,"min_reliable":u16,"max_reliable":u16,
//	 "max_depth":u16,"data":tag40([[h,w], tag69(bytes)])}
//	{"type":"status","available":bool}
//	{"type":"end","series_id":s}
func DecodeMessage(msg []byte) (Message, error) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return Message{}, fmt.Errorf("CBOR decode: %w", err)
	}

	msgType, _ := payload["type"].(string)
	out := Message{Type: msgType, SeriesID: toString(payload["series_id"])}
	switch msgType {
	case MessageStart:
		g, err := decodeGeometry(payload)
		if err != nil {
			return Message{}, err
		}
		out.Geometry = g
	case MessageImage:
		img, err := decodeImage(payload)
		if err != nil {
			return Message{}, err
		}
		out.Image = img
	case MessageStatus:
		available, ok := payload["available"].(bool)
		if !ok {
			return Message{}, fmt.Errorf("invalid available field")
		}
		out.Available = available
	case MessageEnd:
	default:
		return Message{}, fmt.Errorf("%w %q", ErrUnknownMessage, msgType)
	}
	return out, nil
}

func decodeGeometry(payload map[string]any) (types.FrameGeometry, error) {
	var g types.FrameGeometry
	var err error
	if g.Width, err = toInt(payload["width"]); err != nil {
		return g, fmt.Errorf("invalid width: %w", err)
	}
	if g.Height, err = toInt(payload["height"]); err != nil {
		return g, fmt.Errorf("invalid height: %w", err)
	}
	if g.BytesPerSample, err = toInt(payload["bytes_per_sample"]); err != nil {
		return g, fmt.Errorf("invalid bytes_per_sample: %w", err)
	}
	return g, g.Validate()
}

func decodeImage(payload map[string]any) (Image, error) {
	imageID, err := toInt(payload["image_id"])
	if err != nil {
		return Image{}, fmt.Errorf("invalid image_id: %w", err)
	}
	minReliable, err := toUint16(payload["min_reliable"])
	if err != nil {
		return Image{}, fmt.Errorf("invalid min_reliable: %w", err)
	}
	maxReliable, err := toUint16(payload["max_reliable"])
	if err != nil {
		return Image{}, fmt.Errorf("invalid max_reliable: %w", err)
	}
	maxDepth := uint16(math.MaxUint16)
	if v, ok := payload["max_depth"]; ok {
		if maxDepth, err = toUint16(v); err != nil {
			return Image{}, fmt.Errorf("invalid max_depth: %w", err)
		}
	}
	arr, err := decodeMultiDimArray(payload["data"])
	if err != nil {
		return Image{}, err
	}
	return Image{
		ImageID: imageID,
		Meta: types.FrameMeta{
			MinReliable: minReliable,
			MaxReliable: maxReliable,
			MaxDepth:    maxDepth,
		},
		Width:          arr.Cols,
		Height:         arr.Rows,
		BytesPerSample: arr.ElemSize,
		Data:           arr.Data,
	}, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of range", n)
		}
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toUint16(v any) (uint16, error) {
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxUint16 {
		return 0, fmt.Errorf("value %d out of uint16 range", n)
	}
	return uint16(n), nil
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case uint64:
		return strconv.FormatUint(s, 10)
	case int64:
		return strconv.FormatInt(s, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
