package captions

// Event is one transcribed-and-translated caption line as produced by the
// transcription backend. Events are immutable once received; ordering between
// events from the same speaker follows arrival order.
type Event struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
	TimestampMs int64  `json:"timestampMs"`
	Language    string `json:"language"`
}

// AudioFragment is one outbound chunk of raw audio sent to the caption
// channel for server-side transcription. Delivery is fire-and-forget.
type AudioFragment struct {
	Seq         uint64 `msgpack:"seq"`
	TimestampMs int64  `msgpack:"timestampMs"`
	Data        []byte `msgpack:"data"`
}
