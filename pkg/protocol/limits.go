package protocol

// Size limits applied to frames in both directions.
const (
	// MaxFrameSize is the largest inbound frame accepted by Decode (1MB).
	// Agent frames repeat the accumulated text on every delta, so this must
	// comfortably exceed the longest expected response.
	MaxFrameSize = 1 << 20

	// MaxCommandSize is the largest outbound command accepted by
	// EncodeCommand (64KB).
	MaxCommandSize = 64 * 1024

	// maxExcerpt bounds the frame excerpt kept in a DecodeError.
	maxExcerpt = 120
)
