package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	filters := []string{"battlefield", "bf2042"}
	assert.True(t, Match("Battlefield™ 6", filters))
	assert.True(t, Match("BF2042 launcher", filters))
	assert.False(t, Match("Notepad", filters))
	assert.True(t, Match("anything", nil))
	assert.False(t, Match("anything", []string{" "}))
}

func TestFindInSkipsUntitled(t *testing.T) {
	list := []Info{
		{Handle: 1, Title: ""},
		{Handle: 2, Title: "Explorer"},
		{Handle: 3, Title: "Battlefield 6"},
		{Handle: 4, Title: "battlefield wiki - Browser"},
	}
	h, ok := FindIn(list, []string{"BATTLEFIELD"})
	assert.True(t, ok)
	assert.Equal(t, Handle(3), h)

	_, ok = FindIn(list, []string{"minecraft"})
	assert.False(t, ok)
}

type listLocator []Info

func (l listLocator) Find(filters []string) (Handle, bool) { return FindIn(l, filters) }

func TestResolve(t *testing.T) {
	loc := listLocator{{Handle: 7, Title: "Battlefield 6"}}

	h, err := Resolve(loc, []string{"battlefield"})
	assert.NoError(t, err)
	assert.Equal(t, Handle(7), h)

	_, err = Resolve(loc, []string{"minecraft", "terraria"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "minecraft, terraria")
}
