// Package phonebook applies parsed commands to the contact directory and
// holds the current response.
//
// Ownership boundary:
// - operation dispatch (insert/get/delete)
// - release of every argument buffer a command does not hand to the directory
// - the single live response buffer and its read cursor
//
// Book is not safe for concurrent use. The transport that owns it must
// serialize Apply and NextChunk calls.
package phonebook

import (
	"time"

	"github.com/danmuck/phonebook/internal/command"
	"github.com/danmuck/phonebook/internal/directory"
	"github.com/danmuck/phonebook/internal/observability"
	"github.com/danmuck/phonebook/internal/response"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Outcome describes one applied command.
type Outcome struct {
	Op       command.Op
	Status   Status
	Consumed int
	// Err is the directory-level error behind an [Error.N] status, if any.
	Err error
}

// Book is the command entry point over one Directory.
type Book struct {
	dir    *directory.Directory
	out    output
	logger zerolog.Logger
}

type Option func(*Book)

// WithLogger overrides the global logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

// New returns a Book over dir with an Idle response.
func New(dir *directory.Directory, opts ...Option) *Book {
	if dir == nil {
		dir = directory.New()
	}
	b := &Book{dir: dir, logger: log.Logger}
	for _, opt := range opts {
		opt(b)
	}
	b.out.setStatus(StatusIdle)
	return b
}

// Directory exposes the underlying index for read-only inspection.
func (b *Book) Directory() *directory.Directory {
	return b.dir
}

// Apply parses and dispatches one complete command. The returned error is
// non-nil only for grammar errors, which still set the matching status as
// the current response. Directory-level failures are reported through
// Outcome.Status and Outcome.Err.
func (b *Book) Apply(src []byte) (Outcome, error) {
	start := time.Now()
	cmd, n, err := command.Parse(src)
	if err != nil {
		st := StatusOf(err)
		b.out.setStatus(st)
		b.logger.Warn().Err(err).Int("bytes", len(src)).Str("status", st.String()).Msg("command rejected")
		observability.RecordCommand(command.OpNone.String(), st.String(), time.Since(start))
		return Outcome{Status: st, Consumed: n}, err
	}

	op := cmd.Op
	st, derr := b.dispatch(cmd)
	if derr != nil {
		st = StatusOf(derr)
	}
	if st != StatusResult {
		b.out.setStatus(st)
	}

	b.logger.Debug().
		Str("op", op.String()).
		Str("status", st.String()).
		Int("surnames", b.dir.Len()).
		Msg("command applied")
	observability.RecordCommand(op.String(), st.String(), time.Since(start))
	observability.RecordDirectorySize(b.dir.Len(), b.dir.Contacts())
	return Outcome{Op: op, Status: st, Consumed: n, Err: derr}, nil
}

// dispatch applies cmd and releases whatever argument buffers remain.
func (b *Book) dispatch(cmd *command.Command) (Status, error) {
	defer cmd.Release()
	switch cmd.Op {
	case command.OpInsert:
		return b.insert(cmd)
	case command.OpGet:
		return b.get(cmd)
	case command.OpDelete:
		return b.delete(cmd)
	default:
		return StatusInvalidOperation, command.ErrInvalidOperation
	}
}

func (b *Book) insert(cmd *command.Command) (Status, error) {
	if !cmd.Has(command.SlotSurname) {
		return StatusMissingSurname, ErrMissingSurname
	}
	if !cmd.Has(command.SlotName) {
		return StatusMissingName, ErrMissingName
	}

	surname := cmd.Take(command.SlotSurname)
	group, taken := b.dir.GetOrCreate(surname)
	if !taken {
		surname.Release()
	}

	name := cmd.Take(command.SlotName)
	rec, taken := group.Contacts().GetOrCreate(name)
	if !taken {
		name.Release()
	}

	rec.SetEmail(cmd.Take(command.SlotEmail))
	rec.SetPhone(cmd.Take(command.SlotPhone))
	return StatusInserted, nil
}

func (b *Book) get(cmd *command.Command) (Status, error) {
	surname := cmd.Arg(command.SlotSurname)
	if surname == nil {
		return StatusMissingSurname, ErrMissingSurname
	}
	group, ok := b.dir.Find(surname)
	if !ok {
		return StatusSurnameNotFound, ErrSurnameNotFound
	}

	var rb response.Builder
	if name := cmd.Arg(command.SlotName); name != nil {
		rec, ok := group.Contacts().Find(name)
		if !ok {
			return StatusNameNotFound, ErrNameNotFound
		}
		rb.AppendRecord(group.Surname(), rec.Name(), rec.Phone(), rec.Email())
	} else {
		group.Contacts().Each(func(rec *directory.Record) bool {
			rb.AppendRecord(group.Surname(), rec.Name(), rec.Phone(), rec.Email())
			return true
		})
	}
	b.out.setRendered(rb.Build())
	return StatusResult, nil
}

// delete removes one record, one group, or everything when no surname is
// given. A name without a surname still clears the whole directory.
func (b *Book) delete(cmd *command.Command) (Status, error) {
	surname := cmd.Arg(command.SlotSurname)
	if surname == nil {
		b.dir.Clear()
		return StatusDeleted, nil
	}
	group, ok := b.dir.Find(surname)
	if !ok {
		return StatusSurnameNotFound, ErrSurnameNotFound
	}

	name := cmd.Arg(command.SlotName)
	if name == nil {
		b.dir.RemoveAll(surname)
		return StatusDeleted, nil
	}
	rec, ok := group.Contacts().Remove(name)
	if !ok {
		return StatusNameNotFound, ErrNameNotFound
	}
	rec.Release()
	b.dir.RemoveIfEmpty(surname)
	return StatusDeleted, nil
}

// Status returns the status of the current response.
func (b *Book) Status() Status {
	return b.out.status
}

// Response returns a copy of the whole current response.
func (b *Book) Response() []byte {
	return append([]byte(nil), b.out.text...)
}

// NextChunk returns up to max bytes of the current response, advancing a
// cursor. Once the response is exhausted it returns (nil, true) a single
// time and rewinds, so the same response can be read again.
func (b *Book) NextChunk(max int) ([]byte, bool) {
	return b.out.next(max)
}

// Close releases the response buffer and every stored contact.
func (b *Book) Close() {
	b.dir.Clear()
	b.out.setStatus(StatusIdle)
	observability.RecordDirectorySize(0, 0)
}
