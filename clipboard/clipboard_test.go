package clipboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyRejectsEmpty(t *testing.T) {
	require.Error(t, Copy(""))
	require.Error(t, Copy("  \n"))
}

func TestCopyRoundTrip(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard on this host")
	}
	if err := Copy("Added 5 kg Rice"); err != nil {
		t.Skipf("clipboard not writable: %v", err)
	}
	got, err := Read()
	require.NoError(t, err)
	require.Equal(t, "Added 5 kg Rice", got)
}
