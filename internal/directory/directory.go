// Package directory owns the two-level contact index.
//
// Ownership boundary:
// - surname index (Directory) and per-surname name index (Contacts)
// - lifetime of every stored record and key buffer
// - group removal once its last contact is gone
//
// Directory is not safe for concurrent use; callers serialize access.
package directory

import (
	rbt "github.com/emirpasic/gods/trees/redblacktree"

	"github.com/danmuck/phonebook/internal/strbuf"
)

// Group is every contact sharing one surname.
type Group struct {
	surname  *strbuf.Buffer
	contacts *Contacts
}

func (g *Group) Surname() *strbuf.Buffer { return g.surname }
func (g *Group) Contacts() *Contacts     { return g.contacts }

func (g *Group) release() {
	g.contacts.release()
	g.surname.Release()
	g.surname = nil
}

// Directory is the root index of surname groups.
type Directory struct {
	tree *rbt.Tree
}

// New constructs an empty directory.
func New() *Directory {
	return &Directory{tree: rbt.NewWith(compareKeys)}
}

// Find returns the group stored under surname.
func (d *Directory) Find(surname *strbuf.Buffer) (*Group, bool) {
	v, ok := d.tree.Get(surname)
	if !ok {
		return nil, false
	}
	return v.(*Group), true
}

// GetOrCreate returns the group for surname, creating an empty one when
// absent. taken has the same meaning as in Contacts.GetOrCreate.
//
// A freshly created group is empty until the caller adds a contact; the
// caller must do so or call RemoveIfEmpty before returning.
func (d *Directory) GetOrCreate(surname *strbuf.Buffer) (g *Group, taken bool) {
	if g, ok := d.Find(surname); ok {
		return g, false
	}
	g = &Group{surname: surname, contacts: newContacts()}
	d.tree.Put(surname, g)
	return g, true
}

// RemoveIfEmpty destroys the group for surname when it has no contacts.
func (d *Directory) RemoveIfEmpty(surname *strbuf.Buffer) bool {
	g, ok := d.Find(surname)
	if !ok || !g.contacts.Empty() {
		return false
	}
	d.tree.Remove(surname)
	g.release()
	return true
}

// RemoveAll destroys the group for surname and every contact beneath it.
func (d *Directory) RemoveAll(surname *strbuf.Buffer) bool {
	g, ok := d.Find(surname)
	if !ok {
		return false
	}
	d.tree.Remove(surname)
	g.release()
	return true
}

// Clear destroys every group and contact.
func (d *Directory) Clear() {
	groups := make([]*Group, 0, d.tree.Size())
	it := d.tree.Iterator()
	for it.Next() {
		groups = append(groups, it.Value().(*Group))
	}
	d.tree.Clear()
	for _, g := range groups {
		g.release()
	}
}

// Len returns the number of surname groups.
func (d *Directory) Len() int { return d.tree.Size() }

// Contacts returns the number of records across all groups.
func (d *Directory) Contacts() int {
	total := 0
	it := d.tree.Iterator()
	for it.Next() {
		total += it.Value().(*Group).contacts.Len()
	}
	return total
}
