package main

import (
	"strings"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupsbridge/internal/cliutil/clitest"
)

func TestRejectWithReason(t *testing.T) {
	rec := &clitest.Recorder{}
	cmd := newRootCmd(strings.NewReader(""))
	cmd.SetArgs([]string{"-h", rec.Start(t), "-U", "alice", "-r", "moving to room 4", "office"})
	require.NoError(t, cmd.Execute())

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, goipp.OpCupsRejectJobs, calls[0].Op)
	assert.Equal(t, "ipp://localhost/printers/office", calls[0].Operation["printer-uri"])
	assert.Equal(t, "moving to room 4", calls[0].Printer["printer-state-message"])
}
