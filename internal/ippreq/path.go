package ippreq

import (
	"net/url"
	"strconv"
	"strings"

	goipp "github.com/OpenPrinting/goipp"
)

// PrinterURI is the local URI of a printer queue.
func PrinterURI(name string) string {
	return "ipp://localhost/printers/" + url.PathEscape(strings.TrimSpace(name))
}

// ClassURI is the local URI of a printer class.
func ClassURI(name string) string {
	return "ipp://localhost/classes/" + url.PathEscape(strings.TrimSpace(name))
}

// JobURI is the local URI of a job.
func JobURI(id int) string {
	return "ipp://localhost/jobs/" + strconv.Itoa(id)
}

// PathForOp is the HTTP resource CUPS serves an operation on.
func PathForOp(op goipp.Op) string {
	switch op {
	case goipp.OpCancelJobs,
		goipp.OpPurgeJobs,
		goipp.OpCupsAddModifyPrinter,
		goipp.OpCupsDeletePrinter,
		goipp.OpCupsAddModifyClass,
		goipp.OpCupsDeleteClass,
		goipp.OpCupsSetDefault,
		goipp.OpCupsAcceptJobs,
		goipp.OpCupsRejectJobs,
		goipp.OpPausePrinter,
		goipp.OpResumePrinter,
		goipp.OpEnablePrinter,
		goipp.OpDisablePrinter,
		goipp.OpHoldNewJobs,
		goipp.OpReleaseHeldNewJobs,
		goipp.OpRestartPrinter:
		return "/admin/"
	case goipp.OpCancelJob,
		goipp.OpCancelMyJobs,
		goipp.OpGetJobs,
		goipp.OpGetJobAttributes,
		goipp.OpSetJobAttributes,
		goipp.OpHoldJob,
		goipp.OpReleaseJob,
		goipp.OpRestartJob,
		goipp.OpResumeJob,
		goipp.OpCreateJobSubscriptions,
		goipp.OpGetNotifications,
		goipp.OpCupsAuthenticateJob,
		goipp.OpCupsMoveJob,
		goipp.OpCupsGetDocument:
		return "/jobs/"
	default:
		return "/"
	}
}

// Resource picks the HTTP resource for a built request: the fixed admin and
// jobs paths first, then the path of the target printer, then "/".
func Resource(msg *goipp.Message) string {
	if msg == nil {
		return "/"
	}
	op := goipp.Op(msg.Code)
	path := PathForOp(op)
	if path != "/" || pinnedToRoot(op) {
		return path
	}
	for _, name := range []string{"printer-uri", "job-uri"} {
		if p, ok := resourceFromURI(operationString(msg, name)); ok {
			return p
		}
	}
	return path
}

func pinnedToRoot(op goipp.Op) bool {
	switch op {
	case goipp.OpCupsGetDevices,
		goipp.OpCupsGetPpd,
		goipp.OpCupsGetPpds,
		goipp.OpCupsGetPrinters,
		goipp.OpCupsGetClasses,
		goipp.OpCupsGetDefault,
		goipp.OpGetSubscriptions,
		goipp.OpCreatePrinterSubscriptions,
		goipp.OpCancelSubscription,
		goipp.OpRenewSubscription:
		return true
	default:
		return false
	}
}

func resourceFromURI(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	path := u.EscapedPath()
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, true
}

func operationString(msg *goipp.Message, name string) string {
	for _, attr := range msg.Operation {
		if attr.Name != name || len(attr.Values) == 0 {
			continue
		}
		return strings.TrimSpace(attr.Values[0].V.String())
	}
	return ""
}
