package directory

import "github.com/danmuck/phonebook/internal/strbuf"

// Record is one contact, keyed by name within its surname group.
type Record struct {
	name  *strbuf.Buffer
	email *strbuf.Buffer
	phone *strbuf.Buffer
}

func newRecord(name *strbuf.Buffer) *Record {
	return &Record{name: name}
}

func (r *Record) Name() *strbuf.Buffer  { return r.name }
func (r *Record) Email() *strbuf.Buffer { return r.email }
func (r *Record) Phone() *strbuf.Buffer { return r.phone }

// SetEmail takes ownership of b and releases the previous email.
// A nil b leaves the field untouched.
func (r *Record) SetEmail(b *strbuf.Buffer) {
	r.email = replace(r.email, b)
}

// SetPhone takes ownership of b and releases the previous phone number.
// A nil b leaves the field untouched.
func (r *Record) SetPhone(b *strbuf.Buffer) {
	r.phone = replace(r.phone, b)
}

// Release frees every buffer the record owns. The record must already be
// detached from its index.
func (r *Record) Release() {
	r.name.Release()
	r.email.Release()
	r.phone.Release()
	r.name, r.email, r.phone = nil, nil, nil
}

func replace(cur, next *strbuf.Buffer) *strbuf.Buffer {
	if next == nil || next == cur {
		return cur
	}
	cur.Release()
	return next
}
