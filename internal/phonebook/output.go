package phonebook

import "github.com/danmuck/phonebook/internal/strbuf"

// output is the current response. At most one rendered buffer is alive;
// replacing the response releases it.
type output struct {
	status Status
	text   []byte
	owned  *strbuf.Buffer
	cursor int
}

func (o *output) setStatus(st Status) {
	o.drop()
	o.status = st
	o.text = statusText[st]
}

func (o *output) setRendered(buf *strbuf.Buffer) {
	o.drop()
	o.status = StatusResult
	o.owned = buf
	o.text = buf.Bytes()
}

func (o *output) drop() {
	o.owned.Release()
	o.owned = nil
	o.text = nil
	o.cursor = 0
}

func (o *output) next(max int) ([]byte, bool) {
	if o.cursor >= len(o.text) {
		o.cursor = 0
		return nil, true
	}
	if max <= 0 {
		return nil, false
	}
	end := o.cursor + max
	if end > len(o.text) {
		end = len(o.text)
	}
	chunk := append([]byte(nil), o.text[o.cursor:end]...)
	o.cursor = end
	return chunk, false
}
