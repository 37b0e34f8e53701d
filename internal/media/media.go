package media

import (
	"context"
	"io"
)

// Upload is a file handed over by the transport layer. Body may only be read
// once.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// Object describes stored media. The rest of the service only ever consumes
// the URL.
type Object struct {
	URL   string
	Bytes int64
}

type Store interface {
	Put(ctx context.Context, up Upload) (Object, error)
}
