package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/vault"
)

func newTestFdReader(input string) *genericclioptions.TestFdReader {
	fi := genericclioptions.NewMockFileInfo("stdin", int64(len(input)), 0o600, false, time.Time{})
	return genericclioptions.NewTestFdReader(bytes.NewBufferString(input), 0, fi)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "y", input: "y\n", want: true},
		{name: "yes", input: "yes\n", want: true},
		{name: "Yes mixed case", input: "YeS\n", want: true},
		{name: "n", input: "n\n", want: false},
		{name: "empty", input: "\n", want: false},
		{name: "garbage", input: "maybe\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streams, in, out, _ := genericclioptions.NewTestIOStreams(newTestFdReader(tt.input))

			got, err := confirm(streams.Out, in, "delete %s? (y/N): ", "cred-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "delete cred-1? (y/N): ")
		})
	}
}

func TestPrintCredentialTable(t *testing.T) {
	streams := genericclioptions.NewTestIOStreamsDiscard(newTestFdReader(""))

	creds := []vault.Credential{
		{ID: "cred-1", Name: "github", Kind: "password", Username: "alice", URL: "https://github.com", Favorite: true},
	}

	// printCredentialTable must not panic when writing into a discard
	// stream; the actual table formatting is exercised via o.Out in the
	// find command's Run path.
	printCredentialTable(streams.Out, creds)

	var buf bytes.Buffer
	printCredentialTable(&buf, creds)

	assert.True(t, strings.Contains(buf.String(), "cred-1"))
	assert.True(t, strings.Contains(buf.String(), "github"))
}
