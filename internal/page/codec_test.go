package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CodecTestSuite struct {
	suite.Suite
	codec Codec
}

func (s *CodecTestSuite) SetupTest() {
	s.codec = NewCodec(ToggleMask)
}

func (s *CodecTestSuite) TestFirstPageAlwaysApplies() {
	f, ok := s.codec.Decode(MustParse("04 00 00 00 00 00 00 00"))

	s.Require().True(ok, "first page MUST always be accepted")
	s.True(f.First)
	s.False(f.BackgroundReady, "background MUST NOT be ready on the first page")
	s.Equal(byte(4), f.Number)
}

func (s *CodecTestSuite) TestDuplicateSuppression() {
	p := MustParse("84 01 02 03 04 05 06 07")

	_, ok := s.codec.Decode(p)
	s.Require().True(ok)

	f, ok := s.codec.Decode(p)
	s.False(ok, "byte-identical consecutive page MUST be rejected")
	s.True(f.Duplicate, "rejected repeat MUST be flagged as duplicate")
	s.Equal(byte(4), f.Number, "rejected repeat MUST still report its page number")

	_, ok = s.codec.Decode(MustParse("84 01 02 03 04 05 06 08"))
	s.True(ok, "a different page MUST be accepted")

	_, ok = s.codec.Decode(p)
	s.True(ok, "a page equal to an older, non-adjacent page MUST be accepted")
}

func (s *CodecTestSuite) TestToggleGating() {
	// GOAL: Background pages are only trusted after the toggle bit flipped once
	//
	// TEST SCENARIO: three pages with the first toggle value → not ready; flipped page → ready; sticky afterwards
	pages := []string{
		"02 00 00 00 10 00 01 3C",
		"02 00 00 00 20 00 02 3C",
		"02 00 00 00 30 00 03 3C",
	}
	for _, h := range pages {
		f, ok := s.codec.Decode(MustParse(h))
		s.Require().True(ok)
		s.False(f.BackgroundReady, "page %s MUST NOT be background ready", h)
	}

	f, ok := s.codec.Decode(MustParse("82 00 00 00 40 00 04 3C"))
	s.Require().True(ok)
	s.True(f.BackgroundReady, "flipped toggle MUST enable background pages")
	s.Equal(byte(2), f.Number, "toggle bit MUST be stripped from the page number")

	f, ok = s.codec.Decode(MustParse("02 00 00 00 50 00 05 3C"))
	s.Require().True(ok)
	s.True(f.BackgroundReady, "toggle synchronisation MUST be sticky")
	s.True(s.codec.Toggled())
}

func (s *CodecTestSuite) TestReset() {
	s.codec.Decode(MustParse("00 00 00 00 00 00 00 00"))
	s.codec.Decode(MustParse("80 00 00 00 00 00 00 00"))
	s.Require().True(s.codec.Toggled())

	s.codec.Reset()

	f, ok := s.codec.Decode(MustParse("80 00 00 00 00 00 00 00"))
	s.True(ok)
	s.True(f.First)
	s.False(s.codec.Toggled())
}

func TestCodecTestSuite(t *testing.T) {
	suite.Run(t, new(CodecTestSuite))
}

func TestCodec_WithoutToggleIsAlwaysReady(t *testing.T) {
	c := NewCodec(0)

	f, ok := c.Decode(MustParse("80 00 00 00 00 00 00 00"))
	require.True(t, ok)
	assert.True(t, f.First)
	assert.True(t, f.BackgroundReady)
	assert.Equal(t, byte(0x80), f.Number, "byte 0 MUST be kept intact without a toggle mask")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Page
		wantErr bool
	}{
		{name: "spaced", input: "01 02 03 04 05 06 07 08", want: Page{1, 2, 3, 4, 5, 6, 7, 8}},
		{name: "packed with prefix", input: "0x1011121314151617", want: Page{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}},
		{name: "colons", input: "ff:ff:ff:ff:ff:ff:ff:ff", want: Page{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "too short", input: "01 02", wantErr: true},
		{name: "not hex", input: "zz 02 03 04 05 06 07 08", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromBytes_RejectsWrongLength(t *testing.T) {
	_, ok := FromBytes(nil)
	assert.False(t, ok)
	_, ok = FromBytes(make([]byte, 9))
	assert.False(t, ok)
	p, ok := FromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.True(t, ok)
	assert.Equal(t, "01 02 03 04 05 06 07 08", p.String())
}

func TestPage_Fields(t *testing.T) {
	p := MustParse("10 34 12 56 34 12 FE FF")

	assert.Equal(t, uint16(0x1234), p.Uint16(1))
	assert.Equal(t, uint16(0x3412), p.Uint16BE(1))
	assert.Equal(t, uint32(0x123456), p.Uint24(3))
	assert.Equal(t, int32(-126412), p.Int32(4))
}
