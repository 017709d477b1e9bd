package main

import (
	"strings"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupsbridge/internal/cliutil/clitest"
)

func run(t *testing.T, rec *clitest.Recorder, args ...string) error {
	t.Helper()
	cmd := newRootCmd(strings.NewReader(""))
	cmd.SetArgs(append([]string{"-h", rec.Start(t), "-U", "alice"}, args...))
	return cmd.Execute()
}

func TestDisableWithReason(t *testing.T) {
	rec := &clitest.Recorder{}
	require.NoError(t, run(t, rec, "-r", "paper jam", "office"))
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, goipp.OpPausePrinter, calls[0].Op)
	assert.Equal(t, "ipp://localhost/printers/office", calls[0].Operation["printer-uri"])
	assert.Equal(t, "paper jam", calls[0].Printer["printer-state-message"])
}

func TestDisableWithoutReason(t *testing.T) {
	rec := &clitest.Recorder{}
	require.NoError(t, run(t, rec, "office"))
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Printer, "printer-state-message")
}

func TestDisableAndCancel(t *testing.T) {
	rec := &clitest.Recorder{}
	require.NoError(t, run(t, rec, "-c", "office"))
	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, goipp.OpPurgeJobs, calls[1].Op)
	_, mine := calls[1].Operation["my-jobs"]
	assert.False(t, mine)
}
