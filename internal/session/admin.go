package session

import (
	"context"
	"os"
	"slices"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/ippreq"
)

// PrinterSpec describes a printer for AddPrinter. At most one of PPDFile
// and PPDName may be set.
type PrinterSpec struct {
	// PPDFile is a local PPD uploaded with the request.
	PPDFile string
	// PPDName names a driver the server already has (see GetPPDs).
	PPDName  string
	Info     string
	Location string
	Device   string
}

// AddPrinter creates or modifies a printer queue.
func (s *Session) AddPrinter(ctx context.Context, name string, spec PrinterSpec) error {
	b := s.newRequest(goipp.OpCupsAddModifyPrinter).
		Exclusive(map[string]bool{"filename": spec.PPDFile != "", "ppdname": spec.PPDName != ""})
	if name == "" {
		return ipperr.Invalid(goipp.OpCupsAddModifyPrinter.String(), "name", "is required")
	}
	if err := b.Err(); err != nil {
		return err
	}
	b.PrinterURI(ippreq.PrinterURI(name))
	if spec.PPDName != "" {
		b.Printer("ppd-name", goipp.TagName, spec.PPDName)
	}
	if spec.Info != "" {
		b.Printer("printer-info", goipp.TagText, spec.Info)
	}
	if spec.Location != "" {
		b.Printer("printer-location", goipp.TagText, spec.Location)
	}
	if spec.Device != "" {
		b.Printer("device-uri", goipp.TagURI, spec.Device)
	}
	if spec.PPDFile == "" {
		_, err := s.do(ctx, b)
		return err
	}
	f, err := os.Open(spec.PPDFile)
	if err != nil {
		return ipperr.Invalid(goipp.OpCupsAddModifyPrinter.String(), "filename", "%v", err)
	}
	defer f.Close()
	_, err = s.send(ctx, b, s.withDocument(f))
	return err
}

// modify sends CUPS-Add-Modify-Printer, or CUPS-Add-Modify-Class when name
// turns out to be a class.
func (s *Session) modify(ctx context.Context, name string, fill func(b *ippreq.Builder)) error {
	return s.simpleTarget(ctx, goipp.OpCupsAddModifyPrinter, goipp.OpCupsAddModifyClass, name, fill)
}

func (s *Session) SetPrinterDevice(ctx context.Context, name, deviceURI string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("device-uri", goipp.TagURI, deviceURI)
	})
}

func (s *Session) SetPrinterInfo(ctx context.Context, name, info string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("printer-info", goipp.TagText, info)
	})
}

func (s *Session) SetPrinterLocation(ctx context.Context, name, location string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("printer-location", goipp.TagText, location)
	})
}

func (s *Session) SetPrinterShared(ctx context.Context, name string, shared bool) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("printer-is-shared", goipp.TagBoolean, shared)
	})
}

// SetPrinterJobSheets sets the banner pages printed before and after each
// job ("none" for no banner).
func (s *Session) SetPrinterJobSheets(ctx context.Context, name, start, end string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("job-sheets-default", goipp.TagName, start, end)
	})
}

func (s *Session) SetPrinterErrorPolicy(ctx context.Context, name, policy string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("printer-error-policy", goipp.TagName, policy)
	})
}

func (s *Session) SetPrinterOpPolicy(ctx context.Context, name, policy string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Printer("printer-op-policy", goipp.TagName, policy)
	})
}

// SetPrinterUsersAllowed limits printing to users; an empty list allows
// everyone.
func (s *Session) SetPrinterUsersAllowed(ctx context.Context, name string, users []string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.Users("requesting-user-name-allowed", users)
	})
}

// SetPrinterUsersDenied refuses jobs from users; an empty list denies
// nobody.
func (s *Session) SetPrinterUsersDenied(ctx context.Context, name string, users []string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		if len(users) == 0 {
			b.Printer("requesting-user-name-denied", goipp.TagName, "none")
			return
		}
		b.Users("requesting-user-name-denied", users)
	})
}

// AddPrinterOptionDefault sets the queue default of a job option, typed
// like a job option value.
func (s *Session) AddPrinterOptionDefault(ctx context.Context, name, option, value string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.OptionDefault(option, value)
	})
}

func (s *Session) DeletePrinterOptionDefault(ctx context.Context, name, option string) error {
	return s.modify(ctx, name, func(b *ippreq.Builder) {
		b.DeleteOptionDefault(option)
	})
}

// DeletePrinter removes a printer, or the class of that name.
func (s *Session) DeletePrinter(ctx context.Context, name string) error {
	return s.simpleTarget(ctx, goipp.OpCupsDeletePrinter, goipp.OpCupsDeleteClass, name, nil)
}

func (s *Session) EnablePrinter(ctx context.Context, name string) error {
	return s.simpleTarget(ctx, goipp.OpResumePrinter, 0, name, nil)
}

// DisablePrinter stops the queue; reason, when given, becomes the
// printer-state-message.
func (s *Session) DisablePrinter(ctx context.Context, name, reason string) error {
	return s.simpleTarget(ctx, goipp.OpPausePrinter, 0, name, stateMessage(reason))
}

func (s *Session) AcceptJobs(ctx context.Context, name string) error {
	return s.simpleTarget(ctx, goipp.OpCupsAcceptJobs, 0, name, nil)
}

func (s *Session) RejectJobs(ctx context.Context, name, reason string) error {
	return s.simpleTarget(ctx, goipp.OpCupsRejectJobs, 0, name, stateMessage(reason))
}

// SetDefault makes name the server default destination.
func (s *Session) SetDefault(ctx context.Context, name string) error {
	return s.simpleTarget(ctx, goipp.OpCupsSetDefault, 0, name, nil)
}

func stateMessage(reason string) func(b *ippreq.Builder) {
	if reason == "" {
		return nil
	}
	return func(b *ippreq.Builder) {
		b.Printer("printer-state-message", goipp.TagText, reason)
	}
}

// AddPrinterToClass adds printer to class, creating the class if needed.
func (s *Session) AddPrinterToClass(ctx context.Context, printer, class string) error {
	op := goipp.OpCupsAddModifyClass.String()
	if printer == "" || class == "" {
		return ipperr.Invalid(op, "printer,class", "both are required")
	}
	members, err := s.classMembers(ctx, class)
	if err != nil {
		return err
	}
	if slices.Contains(members, printer) {
		return ipperr.Invalid(op, "printer", "%s is already a member of %s", printer, class)
	}
	return s.setClassMembers(ctx, class, append(members, printer))
}

// DeletePrinterFromClass removes printer from class. Removing the last
// member deletes the class.
func (s *Session) DeletePrinterFromClass(ctx context.Context, printer, class string) error {
	op := goipp.OpCupsAddModifyClass.String()
	if printer == "" || class == "" {
		return ipperr.Invalid(op, "printer,class", "both are required")
	}
	members, err := s.classMembers(ctx, class)
	if err != nil {
		return err
	}
	i := slices.Index(members, printer)
	if i < 0 {
		return ipperr.Invalid(op, "printer", "%s is not a member of %s", printer, class)
	}
	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		return s.DeleteClass(ctx, class)
	}
	return s.setClassMembers(ctx, class, members)
}

func (s *Session) DeleteClass(ctx context.Context, name string) error {
	if name == "" {
		return ipperr.Invalid(goipp.OpCupsDeleteClass.String(), "name", "is required")
	}
	_, err := s.do(ctx, s.newRequest(goipp.OpCupsDeleteClass).PrinterURI(ippreq.ClassURI(name)))
	return err
}

// classMembers returns the member names of class; a class that does not
// exist has none.
func (s *Session) classMembers(ctx context.Context, class string) ([]string, error) {
	rec, err := s.GetPrinterAttributes(ctx, Target{URI: ippreq.ClassURI(class)}, []string{"member-names"})
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Strings("member-names"), nil
}

func (s *Session) setClassMembers(ctx context.Context, class string, members []string) error {
	uris := make([]any, len(members))
	for i, m := range members {
		uris[i] = ippreq.PrinterURI(m)
	}
	b := s.newRequest(goipp.OpCupsAddModifyClass).
		PrinterURI(ippreq.ClassURI(class)).
		Printer("member-uris", goipp.TagURI, uris...)
	_, err := s.do(ctx, b)
	return err
}
