package audio

import (
	"context"
	"io"
)

// AbstractAnalyzer is the common part of everything that consumes
// PCM chunks: it reports which encoding and how many channels
// it expects the chunks to be in.
type AbstractAnalyzer interface {
	io.Closer

	Encoding(context.Context) (Encoding, error)
	Channels(context.Context) (Channel, error)
}
