package profile

import (
	"fmt"
	"testing"

	"github.com/srg/antscope/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknown_RecordsHistory(t *testing.T) {
	d := NewUnknown(testID(99), testOptions(nil))
	for i := 0; i < 3; i++ {
		feed(d, fmt.Sprintf("0%d 00 00 00 00 00 00 00", i))
	}

	st := d.Snapshot().(UnknownState)
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, uint64(3), st.Buffered)
	assert.Equal(t, page.MustParse("02 00 00 00 00 00 00 00"), st.LastPage)

	pages := d.Pages()
	require.Len(t, pages, 3)
	assert.Equal(t, byte(0), pages[0].Number(), "history MUST be drained oldest first")
	assert.Zero(t, d.Snapshot().(UnknownState).Buffered)
	assert.Empty(t, d.Pages())
}

func TestUnknown_OverwritesOldest(t *testing.T) {
	opts := testOptions(nil)
	opts.PageHistory = 4
	d := NewUnknown(testID(99), opts)

	for i := 0; i < 10; i++ {
		feed(d, fmt.Sprintf("%02X 00 00 00 00 00 00 00", i))
	}

	st := d.Snapshot().(UnknownState)
	assert.Equal(t, uint64(10), st.Received)
	assert.Positive(t, st.Overwritten, "a full history MUST overwrite")
	assert.Equal(t, st.Received, st.Buffered+st.Overwritten)

	pages := d.Pages()
	require.Len(t, pages, int(st.Buffered))
	assert.Equal(t, byte(9), pages[len(pages)-1].Number(), "the newest page MUST be kept")
	for i := 1; i < len(pages); i++ {
		assert.Equal(t, pages[i-1].Number()+1, pages[i].Number(), "kept pages MUST stay in order")
	}
}

func TestUnknown_DuplicatesAreNotRecorded(t *testing.T) {
	d := NewUnknown(testID(99), testOptions(nil))
	feed(d,
		"01 02 03 04 05 06 07 08",
		"01 02 03 04 05 06 07 08",
	)

	assert.Equal(t, uint64(1), d.Snapshot().(UnknownState).Received)
}
