package directory

import (
	rbt "github.com/emirpasic/gods/trees/redblacktree"

	"github.com/danmuck/phonebook/internal/strbuf"
)

// Contacts is the ordered index of records under one surname.
type Contacts struct {
	tree *rbt.Tree
}

func newContacts() *Contacts {
	return &Contacts{tree: rbt.NewWith(compareKeys)}
}

// Find returns the record stored under name.
func (c *Contacts) Find(name *strbuf.Buffer) (*Record, bool) {
	v, ok := c.tree.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Record), true
}

// GetOrCreate returns the record for name, creating it when absent.
// taken reports whether the index now owns name; when false the caller
// still owns name and must release it.
func (c *Contacts) GetOrCreate(name *strbuf.Buffer) (rec *Record, taken bool) {
	if rec, ok := c.Find(name); ok {
		return rec, false
	}
	rec = newRecord(name)
	c.tree.Put(name, rec)
	return rec, true
}

// Remove detaches the record for name and hands it to the caller, who
// is responsible for releasing it.
func (c *Contacts) Remove(name *strbuf.Buffer) (*Record, bool) {
	rec, ok := c.Find(name)
	if !ok {
		return nil, false
	}
	c.tree.Remove(name)
	return rec, true
}

func (c *Contacts) Empty() bool { return c.tree.Empty() }
func (c *Contacts) Len() int    { return c.tree.Size() }

// Each visits records in ascending name order until fn returns false.
func (c *Contacts) Each(fn func(*Record) bool) {
	it := c.tree.Iterator()
	for it.Next() {
		if !fn(it.Value().(*Record)) {
			return
		}
	}
}

// release frees every record and empties the index.
func (c *Contacts) release() {
	records := make([]*Record, 0, c.tree.Size())
	c.Each(func(r *Record) bool {
		records = append(records, r)
		return true
	})
	c.tree.Clear()
	for _, r := range records {
		r.Release()
	}
}

func compareKeys(a, b interface{}) int {
	return strbuf.Compare(a.(*strbuf.Buffer), b.(*strbuf.Buffer))
}
