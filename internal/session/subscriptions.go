package session

import (
	"context"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/ipperr"
)

type SubscriptionRequest struct {
	// URI is the printer URI; empty subscribes to the whole server.
	URI           string
	Events        []string
	JobID         int
	RecipientURI  string
	LeaseDuration int
	TimeInterval  int
	UserData      string
}

// Notifications is the answer to Get-Notifications.
type Notifications struct {
	Events []ippattr.Record
	// Interval is the poll interval the server asks for, in seconds.
	Interval int
	UpTime   int
}

// CreateSubscription creates a printer or job subscription and returns its
// id. Without a recipient URI the subscription is pulled with ippget.
func (s *Session) CreateSubscription(ctx context.Context, r SubscriptionRequest) (int, error) {
	op := goipp.OpCreatePrinterSubscriptions
	if r.JobID > 0 {
		op = goipp.OpCreateJobSubscriptions
	}
	uri := r.URI
	if uri == "" {
		uri = anyPrinterURI
	}
	b := s.newRequest(op).PrinterURI(uri)
	if r.RecipientURI != "" {
		b.Subscription("notify-recipient-uri", goipp.TagURI, r.RecipientURI)
	} else {
		b.Subscription("notify-pull-method", goipp.TagKeyword, "ippget")
	}
	if len(r.Events) > 0 {
		b.Subscription("notify-events", goipp.TagKeyword, strings2any(r.Events)...)
	}
	if r.JobID > 0 {
		b.Subscription("notify-job-id", goipp.TagInteger, r.JobID)
	}
	if r.LeaseDuration > 0 {
		b.Subscription("notify-lease-duration", goipp.TagInteger, r.LeaseDuration)
	}
	if r.TimeInterval > 0 {
		b.Subscription("notify-time-interval", goipp.TagInteger, r.TimeInterval)
	}
	if r.UserData != "" {
		b.Subscription("notify-user-data", goipp.TagString, []byte(r.UserData))
	}
	resp, err := s.do(ctx, b)
	if err != nil {
		return 0, err
	}
	a, ok := ippattr.Find(ippattr.Flatten(resp), goipp.TagSubscriptionGroup, "notify-subscription-id")
	if ok && len(a.Values) > 0 {
		if n, isInt := a.Values[0].(ippattr.Integer); isInt {
			return int(n), nil
		}
	}
	return 0, &ipperr.ProtocolError{Op: op.String(), Status: goipp.Status(resp.Code), Message: "response carries no notify-subscription-id", Err: ipperr.ErrNoResponse}
}

func (s *Session) CancelSubscription(ctx context.Context, id int) error {
	b := s.newRequest(goipp.OpCancelSubscription).
		PrinterURI(anyPrinterURI).
		Operation("notify-subscription-id", goipp.TagInteger, id)
	_, err := s.do(ctx, b)
	return err
}

// RenewSubscription extends a subscription's lease; zero asks for the
// server default.
func (s *Session) RenewSubscription(ctx context.Context, id, leaseDuration int) error {
	b := s.newRequest(goipp.OpRenewSubscription).
		PrinterURI(anyPrinterURI).
		Operation("notify-subscription-id", goipp.TagInteger, id)
	if leaseDuration > 0 {
		b.Subscription("notify-lease-duration", goipp.TagInteger, leaseDuration)
	}
	_, err := s.do(ctx, b)
	return err
}

// GetSubscriptions lists subscriptions on uri (the server when empty),
// optionally only the caller's or one job's.
func (s *Session) GetSubscriptions(ctx context.Context, uri string, mine bool, jobID int) ([]ippattr.Record, error) {
	if uri == "" {
		uri = anyPrinterURI
	}
	b := s.newRequest(goipp.OpGetSubscriptions).PrinterURI(uri)
	if mine {
		b.Operation("my-subscriptions", goipp.TagBoolean, true)
	}
	if jobID > 0 {
		b.Operation("notify-job-id", goipp.TagInteger, jobID)
	}
	resp, err := s.do(ctx, b)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.parser.RecordsBySeparator(ippattr.Flatten(resp), goipp.TagSubscriptionGroup), nil
}

// GetNotifications pulls pending events. sequence, when given, holds the
// next sequence number wanted for each subscription id.
func (s *Session) GetNotifications(ctx context.Context, ids []int, sequence []int) (Notifications, error) {
	op := goipp.OpGetNotifications.String()
	if len(ids) == 0 {
		return Notifications{}, ipperr.Invalid(op, "notify-subscription-ids", "list must not be empty")
	}
	if len(sequence) > 0 && len(sequence) != len(ids) {
		return Notifications{}, ipperr.Invalid(op, "notify-sequence-numbers", "need one per subscription id")
	}
	b := s.newRequest(goipp.OpGetNotifications).
		PrinterURI(anyPrinterURI).
		Operation("notify-subscription-ids", goipp.TagInteger, ints2any(ids)...)
	if len(sequence) > 0 {
		b.Operation("notify-sequence-numbers", goipp.TagInteger, ints2any(sequence)...)
	}
	resp, err := s.do(ctx, b)
	if err != nil {
		return Notifications{}, err
	}
	attrs := ippattr.Flatten(resp)
	out := Notifications{Events: s.parser.RecordsBySeparator(attrs, goipp.TagEventNotificationGroup)}
	opRec := s.parser.Record(operationAttrs(attrs))
	out.Interval, _ = opRec.Int("notify-get-interval")
	out.UpTime, _ = opRec.Int("printer-up-time")
	return out, nil
}

func operationAttrs(attrs []ippattr.Attribute) []ippattr.Attribute {
	var out []ippattr.Attribute
	for _, a := range attrs {
		if a.Group == goipp.TagOperationGroup {
			out = append(out, a)
		}
	}
	return out
}

func strings2any(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func ints2any(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
