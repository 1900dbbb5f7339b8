// internal/channel/response.go
package channel

import (
	"bytes"
	"sync"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/facespatch/internal/browser/parser"
)

// Response is the raw answer to a partial request.
type Response interface {
	// XML returns the parsed body. A nil document with a nil error means the
	// response carried no XML body at all.
	XML() (*etree.Document, error)
	// Text returns the body as received.
	Text() string
}

// rawResponse parses its body lazily, once.
type rawResponse struct {
	body []byte

	once sync.Once
	doc  *etree.Document
	err  error
}

// NewResponse wraps a body that has already been read off the wire.
func NewResponse(body []byte) Response {
	return &rawResponse{body: body}
}

func (r *rawResponse) XML() (*etree.Document, error) {
	r.once.Do(func() {
		if len(bytes.TrimSpace(r.body)) == 0 {
			return
		}
		r.doc, r.err = parser.ParseXMLBytes(r.body)
	})
	return r.doc, r.err
}

func (r *rawResponse) Text() string { return string(r.body) }
