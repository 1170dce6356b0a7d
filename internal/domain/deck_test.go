package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameHelpers(t *testing.T) {
	assert.Equal(t, "", ParentName("Top"))
	assert.Equal(t, "A::B", ParentName("A::B::C"))

	assert.Equal(t, []string{"A", "A::B"}, AncestorNames("A::B::C"))
	assert.Nil(t, AncestorNames("A"))

	assert.True(t, IsAncestorName("A", "A::B"))
	assert.True(t, IsAncestorName("A", "A::B::C"))
	assert.False(t, IsAncestorName("A", "AB"))
	assert.False(t, IsAncestorName("A", "A"))

	assert.Equal(t, 1, NameDepth("A"))
	assert.Equal(t, 3, NameDepth("A::B::C"))

	d := &Deck{Name: "A::B::C"}
	assert.Equal(t, "C", d.Basename())
}

func TestDayCountForDay(t *testing.T) {
	c := DayCount{Day: 10, Count: 7}
	assert.Equal(t, 7, c.ForDay(10))
	assert.Equal(t, 0, c.ForDay(11), "stale counter reads as zero")
}

func TestNoteTags(t *testing.T) {
	n := &Note{Tags: "vocab Leech"}
	assert.True(t, n.HasTag("leech"))
	assert.False(t, n.HasTag("hard"))

	n.AddTag("leech")
	assert.Equal(t, "vocab Leech", n.Tags, "adding an existing tag is a no-op")

	n.AddTag("hard")
	assert.Equal(t, []string{"vocab", "Leech", "hard"}, n.TagList())
}
