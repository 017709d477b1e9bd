package session

import (
	"context"
	"io"
	"os"
	"path/filepath"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/cupsclient"
	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/ippreq"
)

// JobAttributes is what GetJobs asks for when the query names none.
var JobAttributes = []string{
	"job-id",
	"job-name",
	"job-originating-user-name",
	"job-printer-uri",
	"job-state",
	"job-k-octets",
	"time-at-creation",
}

const anyPrinterURI = "ipp://localhost/"

type JobQuery struct {
	// Which is "not-completed" (the default), "completed" or "all".
	Which               string
	MyJobs              bool
	Limit               int
	FirstJobID          int
	Printer             string
	RequestedAttributes []string
}

// GetJobs lists jobs by id.
func (s *Session) GetJobs(ctx context.Context, q JobQuery) (map[int]ippattr.Record, error) {
	uri := anyPrinterURI
	if q.Printer != "" {
		uri = ippreq.PrinterURI(q.Printer)
	}
	requested := q.RequestedAttributes
	if len(requested) == 0 {
		requested = JobAttributes
	}
	b := s.newRequest(goipp.OpGetJobs).PrinterURI(uri).RequestedAttributes(requested)
	if q.Which != "" {
		b.Operation("which-jobs", goipp.TagKeyword, q.Which)
	}
	if q.MyJobs {
		b.Operation("my-jobs", goipp.TagBoolean, true)
	}
	if q.Limit > 0 {
		b.Operation("limit", goipp.TagInteger, q.Limit)
	}
	if q.FirstJobID > 0 {
		b.Operation("first-job-id", goipp.TagInteger, q.FirstJobID)
	}
	items, err := s.catalog(ctx, b, goipp.TagJobGroup, "job-id")
	if err != nil {
		return nil, err
	}
	return ippattr.IntKeyed(items), nil
}

// GetJobAttributes returns the attributes of one job.
func (s *Session) GetJobAttributes(ctx context.Context, id int, requested []string) (ippattr.Record, error) {
	if id <= 0 {
		return nil, ipperr.Invalid(goipp.OpGetJobAttributes.String(), "job-id", "must be positive")
	}
	resp, err := s.do(ctx, s.newRequest(goipp.OpGetJobAttributes).JobURI(ippreq.JobURI(id)).RequestedAttributes(requested))
	if err != nil {
		return nil, err
	}
	items := s.parser.RecordsByGroup(ippattr.Flatten(resp), goipp.TagJobGroup, ippattr.KeySpec{})
	if len(items) == 0 {
		return ippattr.Record{}, nil
	}
	return items[0].Record, nil
}

// PrintFile submits one file and returns the new job id. Options are typed
// job-template attributes.
func (s *Session) PrintFile(ctx context.Context, printer, filename, title string, options map[string]string) (int, error) {
	op := goipp.OpPrintJob.String()
	if printer == "" {
		return 0, ipperr.Invalid(op, "printer", "is required")
	}
	f, err := os.Open(filename)
	if err != nil {
		return 0, ipperr.Invalid(op, "filename", "%v", err)
	}
	defer f.Close()

	b := s.newRequest(goipp.OpPrintJob).
		PrinterURI(ippreq.PrinterURI(printer)).
		Operation("job-name", goipp.TagName, jobTitle(title, filename)).
		Operation("document-format", goipp.TagMimeType, documentFormat(options)).
		Options(goipp.TagJobGroup, jobOptions(options))
	resp, err := s.send(ctx, b, s.withDocument(f))
	if err != nil {
		return 0, err
	}
	return jobID(op, resp)
}

// PrintFiles submits several files as one job: Create-Job, then one
// Send-Document per file.
func (s *Session) PrintFiles(ctx context.Context, printer string, filenames []string, title string, options map[string]string) (int, error) {
	op := goipp.OpCreateJob.String()
	if printer == "" {
		return 0, ipperr.Invalid(op, "printer", "is required")
	}
	if len(filenames) == 0 {
		return 0, ipperr.Invalid(op, "filenames", "list must not be empty")
	}
	if title == "" {
		title = filepath.Base(filenames[0])
	}
	uri := ippreq.PrinterURI(printer)
	resp, err := s.do(ctx, s.newRequest(goipp.OpCreateJob).
		PrinterURI(uri).
		Operation("job-name", goipp.TagName, title).
		Options(goipp.TagJobGroup, jobOptions(options)))
	if err != nil {
		return 0, err
	}
	id, err := jobID(op, resp)
	if err != nil {
		return 0, err
	}
	for i, name := range filenames {
		if err := s.sendDocument(ctx, uri, id, name, documentFormat(options), i == len(filenames)-1); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (s *Session) sendDocument(ctx context.Context, uri string, id int, filename, format string, last bool) error {
	f, err := os.Open(filename)
	if err != nil {
		return ipperr.Invalid(goipp.OpSendDocument.String(), "filename", "%v", err)
	}
	defer f.Close()
	b := s.newRequest(goipp.OpSendDocument).
		PrinterURI(uri).
		JobID(id).
		Operation("document-name", goipp.TagName, filepath.Base(filename)).
		Operation("document-format", goipp.TagMimeType, format).
		Operation("last-document", goipp.TagBoolean, last)
	_, err = s.send(ctx, b, s.withDocument(f))
	return err
}

func (s *Session) withDocument(r io.ReadSeeker) sendFunc {
	return func(ctx context.Context, h cupsclient.Handle, req *goipp.Message, resource string) (*goipp.Message, error) {
		return s.transport.DoFile(ctx, h, req, resource, r)
	}
}

// CancelJob cancels a job; purge also removes its files and history.
func (s *Session) CancelJob(ctx context.Context, id int, purge bool) error {
	if id <= 0 {
		return ipperr.Invalid(goipp.OpCancelJob.String(), "job-id", "must be positive")
	}
	b := s.newRequest(goipp.OpCancelJob).JobURI(ippreq.JobURI(id))
	if purge {
		b.Operation("purge-job", goipp.TagBoolean, true)
	}
	_, err := s.do(ctx, b)
	return err
}

// CancelAllJobs cancels every job on a printer or class, or only the
// caller's jobs.
func (s *Session) CancelAllJobs(ctx context.Context, t Target, myJobs, purge bool) error {
	op := goipp.OpCancelJobs
	if purge {
		op = goipp.OpPurgeJobs
	}
	_, err := s.sendTarget(ctx, op, t, func(uri string, _ bool) *ippreq.Builder {
		b := s.newRequest(op).PrinterURI(uri)
		if myJobs {
			b.Operation("my-jobs", goipp.TagBoolean, true)
		}
		return b
	})
	return err
}

// MoveJob moves one job, or every job queued on fromURI, to the named
// destination.
func (s *Session) MoveJob(ctx context.Context, id int, fromURI, to string) error {
	if to == "" {
		return ipperr.Invalid(goipp.OpCupsMoveJob.String(), "job-printer-uri", "destination is required")
	}
	b := s.newRequest(goipp.OpCupsMoveJob).
		Require(map[string]bool{"job-id": id > 0, "printer-uri": fromURI != ""})
	if fromURI == "" {
		fromURI = anyPrinterURI
	}
	b.PrinterURI(fromURI)
	if id > 0 {
		b.JobID(id)
	}
	b.Job("job-printer-uri", goipp.TagURI, ippreq.PrinterURI(to))
	_, err := s.do(ctx, b)
	return err
}

// AuthenticateJob releases a job held for authentication. At most
// ippreq.MaxAuthInfo values are sent.
func (s *Session) AuthenticateJob(ctx context.Context, id int, authInfo []string) error {
	b := s.newRequest(goipp.OpCupsAuthenticateJob).JobURI(ippreq.JobURI(id)).AuthInfo(authInfo)
	_, err := s.do(ctx, b)
	return err
}

// SetJobHoldUntil changes job-hold-until ("no-hold", "indefinite", ...).
func (s *Session) SetJobHoldUntil(ctx context.Context, id int, holdUntil string) error {
	if holdUntil == "" {
		return ipperr.Invalid(goipp.OpSetJobAttributes.String(), "job-hold-until", "is required")
	}
	b := s.newRequest(goipp.OpSetJobAttributes).
		JobURI(ippreq.JobURI(id)).
		Job("job-hold-until", goipp.TagKeyword, holdUntil)
	_, err := s.do(ctx, b)
	return err
}

// RestartJob reprints a retained job, optionally holding it.
func (s *Session) RestartJob(ctx context.Context, id int, holdUntil string) error {
	b := s.newRequest(goipp.OpRestartJob).JobURI(ippreq.JobURI(id))
	if holdUntil != "" {
		b.Operation("job-hold-until", goipp.TagKeyword, holdUntil)
	}
	_, err := s.do(ctx, b)
	return err
}

func jobID(op string, resp *goipp.Message) (int, error) {
	a, ok := ippattr.Find(ippattr.Flatten(resp), goipp.TagJobGroup, "job-id")
	if ok && len(a.Values) > 0 {
		if n, isInt := a.Values[0].(ippattr.Integer); isInt {
			return int(n), nil
		}
	}
	return 0, &ipperr.ProtocolError{Op: op, Status: goipp.Status(resp.Code), Message: "response carries no job-id", Err: ipperr.ErrNoResponse}
}

func jobTitle(title, filename string) string {
	if title != "" {
		return title
	}
	return filepath.Base(filename)
}

func documentFormat(options map[string]string) string {
	if f := options["document-format"]; f != "" {
		return f
	}
	return "application/octet-stream"
}

// jobOptions drops the options sent as operation attributes.
func jobOptions(options map[string]string) map[string]string {
	out := make(map[string]string, len(options))
	for k, v := range options {
		if k == "document-format" || k == "job-name" {
			continue
		}
		out[k] = v
	}
	return out
}
