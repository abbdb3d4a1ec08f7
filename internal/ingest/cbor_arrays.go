package ingest

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"depthview-go/internal/compression"
)

const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
	tagUint32LE      = 70
	tagCompressed    = 56500
)

// sampleArray is a row-major typed array of little-endian samples.
type sampleArray struct {
	Rows     int
	Cols     int
	ElemSize int
	Data     []byte
}

func decodeMultiDimArray(value any) (sampleArray, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return sampleArray{}, fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return sampleArray{}, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) != 2 {
		return sampleArray{}, fmt.Errorf("invalid multidim dimensions")
	}

	rows, err := toInt(dimsRaw[0])
	if err != nil {
		return sampleArray{}, err
	}
	cols, err := toInt(dimsRaw[1])
	if err != nil {
		return sampleArray{}, err
	}

	data, elemSize, err := decodeTypedArray(items[1])
	if err != nil {
		return sampleArray{}, err
	}
	return sampleArray{Rows: rows, Cols: cols, ElemSize: elemSize, Data: data}, nil
}

func decodeTypedArray(value any) ([]byte, int, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, 0, fmt.Errorf("expected typed array tag")
	}

	var elemSize int
	switch tag.Number {
	case tagUint8:
		elemSize = 1
	case tagUint16LE:
		elemSize = 2
	case tagUint32LE:
		elemSize = 4
	default:
		return nil, 0, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}

	data, err := extractBytes(tag, elemSize)
	if err != nil {
		return nil, 0, err
	}
	return data, elemSize, nil
}

func extractBytes(tag cbor.Tag, elemSize int) ([]byte, error) {
	switch v := tag.Content.(type) {
	case []byte:
		return v, nil
	case cbor.Tag:
		if v.Number != tagCompressed {
			return nil, fmt.Errorf("unsupported nested tag %d", v.Number)
		}
		return decompress(v, elemSize)
	default:
		return nil, fmt.Errorf("unsupported typed array content %T", v)
	}
}

func decompress(tag cbor.Tag, elemSize int) ([]byte, error) {
	items, ok := tag.Content.([]any)
	if !ok || len(items) != 3 {
		return nil, errors.New("invalid compressed tag content")
	}
	algorithm, ok := items[0].(string)
	if !ok {
		return nil, errors.New("invalid compression algorithm")
	}
	declared, err := toInt(items[1])
	if err != nil {
		return nil, err
	}
	if declared != elemSize {
		return nil, fmt.Errorf("compressed element size %d does not match typed array (%d)", declared, elemSize)
	}
	encoded, ok := items[2].([]byte)
	if !ok {
		return nil, errors.New("invalid compressed payload")
	}
	return compression.Decompress(encoded, algorithm, elemSize)
}

// EncodeSamples builds the tag 40 / typed array value carrying raw samples,
// optionally compressed. It is the inverse of decodeMultiDimArray.
func EncodeSamples(rows, cols, elemSize int, raw []byte, algorithm string) (cbor.Tag, error) {
	var typed uint64
	switch elemSize {
	case 1:
		typed = tagUint8
	case 2:
		typed = tagUint16LE
	case 4:
		typed = tagUint32LE
	default:
		return cbor.Tag{}, fmt.Errorf("unsupported element size %d", elemSize)
	}
	var content any = raw
	if algorithm != "" && algorithm != "none" {
		encoded, err := compression.Compress(raw, algorithm)
		if err != nil {
			return cbor.Tag{}, err
		}
		content = cbor.Tag{Number: tagCompressed, Content: []any{algorithm, elemSize, encoded}}
	}
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{rows, cols},
			cbor.Tag{Number: typed, Content: content},
		},
	}, nil
}
