package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentFilter_Apply(t *testing.T) {
	f, err := newContentFilter(BannedWords, CensorMask)
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"clean text", "clean text"},
		{"BADWORD", "***"},
		{"badwordbadword", "******"},
		{"Offensive and Dummy", "*** and ***"},
		{"x-dummy-x", "x-***-x"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, f.Apply(tt.in), "input %q", tt.in)
	}
}

func TestContentFilter_ListOrder(t *testing.T) {
	// "ab" is masked first, which breaks the overlapping "bc".
	f, err := newContentFilter([]string{"ab", "bc"}, "#")
	require.NoError(t, err)
	require.Equal(t, "#c", f.Apply("abc"))

	f, err = newContentFilter([]string{"bc", "ab"}, "#")
	require.NoError(t, err)
	require.Equal(t, "a#", f.Apply("abc"))
}

func TestContentFilter_MaskCompletesLaterWord(t *testing.T) {
	f, err := newContentFilter([]string{"badword", "offensive"}, "off")
	require.NoError(t, err)
	require.Equal(t, "off", f.Apply("BadWordensive"))
	require.Equal(t, "offx", f.Apply("badwordx"))

	// An earlier word is not revisited.
	f, err = newContentFilter([]string{"offensive", "badword"}, "off")
	require.NoError(t, err)
	require.Equal(t, "offensive", f.Apply("badwordensive"))
}

func TestContentFilter_NoWords(t *testing.T) {
	f, err := newContentFilter(nil, CensorMask)
	require.NoError(t, err)
	require.Equal(t, "mixed case", f.Apply("Mixed CASE"))
}

func TestContentFilter_DeduplicatesWords(t *testing.T) {
	f, err := newContentFilter([]string{"Dummy", "dummy", ""}, CensorMask)
	require.NoError(t, err)
	require.Equal(t, []string{"dummy"}, f.words)
}
