package domain

import "strings"

// Note is the shared fact owning one card per valid template. The
// scheduler only touches its tag set (leech flagging); field content
// and templates belong to the editing layer.
type Note struct {
	ID   int64 `db:"id"`
	Mod  int64 `db:"mod"`
	Tags string
}

// TagList splits the stored space-separated tag string.
func (n *Note) TagList() []string {
	return strings.Fields(n.Tags)
}

// HasTag reports whether the note carries tag, case-insensitively.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.TagList() {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag appends tag unless the note already carries it.
func (n *Note) AddTag(tag string) {
	if n.HasTag(tag) {
		return
	}
	tags := append(n.TagList(), tag)
	n.Tags = strings.Join(tags, " ")
}
