package types

type ConfigMessage struct {
	Type           string      `json:"type"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	BytesPerSample int         `json:"bytes_per_sample"`
	Policy         DepthPolicy `json:"policy"`
	Palette        []string    `json:"palette"`
	Thresholds     []uint16    `json:"thresholds"`
}

type FrameMessage struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pixels []byte `json:"pixels"`
}

type StatusMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Available bool   `json:"available"`
}
