// Package response assembles query output from fragments.
//
// Fragments reference bytes that already exist (package labels or stored
// buffers). The builder keeps a running length so Build can allocate the
// output once and copy every fragment in order.
package response

import "github.com/danmuck/phonebook/internal/strbuf"

var (
	labelSurname = []byte("Surname:\t")
	labelName    = []byte("Name:\t\t")
	labelPhone   = []byte("Phone number:\t")
	labelEmail   = []byte("Email:\t\t")
	rowEnd       = []byte("\n")
)

type fragment struct {
	next *fragment
	data []byte
}

// Builder is a singly linked emission list with a tracked total length.
// Referenced buffers must stay alive until Build returns.
type Builder struct {
	head    *fragment
	tail    *fragment
	size    int
	records int
}

func (b *Builder) append(p []byte) {
	if len(p) == 0 {
		return
	}
	f := &fragment{data: p}
	if b.tail == nil {
		b.head = f
	} else {
		b.tail.next = f
	}
	b.tail = f
	b.size += len(p)
}

// AppendLiteral adds a fragment referencing p.
func (b *Builder) AppendLiteral(p []byte) {
	b.append(p)
}

// AppendBuffer adds a fragment referencing the content of buf.
func (b *Builder) AppendBuffer(buf *strbuf.Buffer) {
	b.append(buf.Bytes())
}

// AppendRecord renders one contact. phone and email may be nil.
// Records after the first are preceded by one blank line.
func (b *Builder) AppendRecord(surname, name, phone, email *strbuf.Buffer) {
	if b.records > 0 {
		b.append(rowEnd)
	}
	b.records++
	b.field(labelSurname, surname)
	b.field(labelName, name)
	if phone != nil {
		b.field(labelPhone, phone)
	}
	if email != nil {
		b.field(labelEmail, email)
	}
}

func (b *Builder) field(label []byte, value *strbuf.Buffer) {
	b.append(label)
	b.AppendBuffer(value)
	b.append(rowEnd)
}

// Len returns the total length of all fragments appended so far.
func (b *Builder) Len() int { return b.size }

// Records returns the number of records appended.
func (b *Builder) Records() int { return b.records }

// Build copies every fragment into one owned buffer and resets the builder.
func (b *Builder) Build() *strbuf.Buffer {
	out := strbuf.Allocate(b.size)
	for f := b.head; f != nil; {
		// capacity equals the summed length, so Write cannot fail here
		_, _ = out.Write(f.data)
		next := f.next
		f.next = nil
		f = next
	}
	b.Reset()
	return out
}

// Reset drops every fragment without building.
func (b *Builder) Reset() {
	b.head, b.tail = nil, nil
	b.size, b.records = 0, 0
}
