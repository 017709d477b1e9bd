package model

import (
	"strings"
	"time"
)

// DestKey identifies a destination in a catalog. An empty Instance is the
// base destination. The zero key, which no real destination has, is the
// alias of the default destination.
type DestKey struct {
	Name     string
	Instance string
}

func Key(name, instance string) DestKey {
	return DestKey{Name: name, Instance: instance}
}

func (k DestKey) IsDefaultAlias() bool {
	return k == DestKey{}
}

func (k DestKey) String() string {
	switch {
	case k.IsDefaultAlias():
		return "(default)"
	case k.Instance != "":
		return k.Name + "/" + k.Instance
	default:
		return k.Name
	}
}

// ParseKey splits "name/instance".
func ParseKey(s string) DestKey {
	name, instance, _ := strings.Cut(strings.TrimSpace(s), "/")
	return DestKey{Name: name, Instance: instance}
}

// Destination is a printer or class, optionally narrowed to a user
// instance, with its option map. It is not modified after construction.
type Destination struct {
	Name      string
	Instance  string
	IsDefault bool
	Options   map[string]string
}

func (d *Destination) Key() DestKey {
	return Key(d.Name, d.Instance)
}

// DestOption is one stored user option override. An empty Instance applies
// to the base destination.
type DestOption struct {
	Dest     string
	Instance string
	Name     string
	Value    string
}

// Printer is a typed view of a printer or class record.
type Printer struct {
	Name         string   `ipp:"printer-name" yaml:"name"`
	URI          string   `ipp:"printer-uri-supported" yaml:"uri,omitempty"`
	DeviceURI    string   `ipp:"device-uri" yaml:"device_uri,omitempty"`
	Info         string   `ipp:"printer-info" yaml:"info,omitempty"`
	Location     string   `ipp:"printer-location" yaml:"location,omitempty"`
	MakeModel    string   `ipp:"printer-make-and-model" yaml:"make_and_model,omitempty"`
	State        int      `ipp:"printer-state" yaml:"state"`
	StateMessage string   `ipp:"printer-state-message" yaml:"state_message,omitempty"`
	StateReasons []string `ipp:"printer-state-reasons" yaml:"state_reasons,omitempty"`
	Accepting    bool     `ipp:"printer-is-accepting-jobs" yaml:"accepting"`
	Shared       bool     `ipp:"printer-is-shared" yaml:"shared"`
	Type         int      `ipp:"printer-type" yaml:"type"`
	Members      []string `ipp:"member-names" yaml:"members,omitempty"`
}

// Printer-type bits used by the CLI.
const (
	PrinterTypeClass  = 0x0001
	PrinterTypeRemote = 0x0002
)

func (p Printer) IsClass() bool { return p.Type&PrinterTypeClass != 0 }

func (p Printer) StateName() string {
	switch p.State {
	case 3:
		return "idle"
	case 4:
		return "processing"
	case 5:
		return "stopped"
	default:
		return "unknown"
	}
}

// Job is a typed view of a job record.
type Job struct {
	ID         int    `ipp:"job-id" yaml:"id"`
	Name       string `ipp:"job-name" yaml:"name,omitempty"`
	User       string `ipp:"job-originating-user-name" yaml:"user,omitempty"`
	PrinterURI string `ipp:"job-printer-uri" yaml:"printer_uri,omitempty"`
	State      int    `ipp:"job-state" yaml:"state"`
	Size       int    `ipp:"job-k-octets" yaml:"size_k"`
	Created    int    `ipp:"time-at-creation" yaml:"created"`
}

func (j Job) CreatedAt() time.Time {
	return time.Unix(int64(j.Created), 0)
}

func (j Job) StateName() string {
	switch j.State {
	case 3:
		return "pending"
	case 4:
		return "held"
	case 5:
		return "processing"
	case 6:
		return "stopped"
	case 7:
		return "canceled"
	case 8:
		return "aborted"
	case 9:
		return "completed"
	default:
		return "unknown"
	}
}
