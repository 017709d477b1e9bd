package session

import (
	"context"
	"errors"
	"maps"
	"os"
	"strings"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/model"
	"cupsbridge/internal/store"
)

// destAttributes become the base options of each destination.
var destAttributes = []string{
	"printer-name",
	"printer-info",
	"printer-location",
	"printer-make-and-model",
	"printer-state",
	"printer-state-reasons",
	"printer-type",
	"printer-is-accepting-jobs",
	"printer-is-shared",
	"printer-uri-supported",
	"device-uri",
	"job-sheets-default",
	"member-names",
}

// GetDests lists every printer and class with the user's instances and
// option overrides. The default destination is also stored under the zero
// DestKey, sharing the same *model.Destination.
func (s *Session) GetDests(ctx context.Context) (map[model.DestKey]*model.Destination, error) {
	b := s.newRequest(goipp.OpCupsGetPrinters).RequestedAttributes(destAttributes)
	items, err := s.catalog(ctx, b, goipp.TagPrinterGroup, "printer-name")
	if err != nil {
		return nil, err
	}

	base := make(map[string]map[string]string, len(items))
	for _, it := range items {
		name := it.Key.String()
		if name == "" {
			continue
		}
		opts := make(map[string]string, len(it.Record))
		for k, v := range it.Record {
			if k == "printer-name" {
				continue
			}
			opts[k] = strings.Join(ippattr.Strings(v), ",")
		}
		base[name] = opts
	}

	overrides, instances, userDefault, err := s.userDests(ctx)
	if err != nil {
		return nil, err
	}

	dests := make(map[model.DestKey]*model.Destination, len(base)+len(instances)+1)
	for name, opts := range base {
		merged := maps.Clone(opts)
		maps.Copy(merged, overrides[model.Key(name, "")])
		dests[model.Key(name, "")] = &model.Destination{Name: name, Options: merged}
	}
	for _, k := range instances {
		if k.Instance == "" || base[k.Name] == nil {
			continue
		}
		merged := maps.Clone(dests[model.Key(k.Name, "")].Options)
		maps.Copy(merged, overrides[k])
		dests[k] = &model.Destination{Name: k.Name, Instance: k.Instance, Options: merged}
	}

	key, ok, err := s.pickDefault(ctx, dests, userDefault)
	if err != nil {
		return nil, err
	}
	if !ok {
		return dests, nil
	}
	d := dests[key]
	d.IsDefault = true
	dests[model.DestKey{}] = d
	return dests, nil
}

// userDests reads the store, if one is attached.
func (s *Session) userDests(ctx context.Context) (map[model.DestKey]map[string]string, []model.DestKey, model.DestKey, error) {
	overrides := map[model.DestKey]map[string]string{}
	if s.store == nil {
		return overrides, nil, model.DestKey{}, nil
	}
	opts, err := s.store.AllOptions(ctx)
	if err != nil {
		return nil, nil, model.DestKey{}, err
	}
	for _, o := range opts {
		k := model.Key(o.Dest, o.Instance)
		if overrides[k] == nil {
			overrides[k] = map[string]string{}
		}
		overrides[k][o.Name] = o.Value
	}
	instances, err := s.store.Instances(ctx)
	if err != nil {
		return nil, nil, model.DestKey{}, err
	}
	def, err := s.store.Default(ctx)
	if err != nil && !errors.Is(err, store.ErrNoDefault) {
		return nil, nil, model.DestKey{}, err
	}
	return overrides, instances, def, nil
}

// pickDefault tries the user default, then LPDEST and PRINTER, then the
// server default. Candidates naming no known destination are skipped. A
// server with no default is not an error; a failed lookup is.
func (s *Session) pickDefault(ctx context.Context, dests map[model.DestKey]*model.Destination, userDefault model.DestKey) (model.DestKey, bool, error) {
	candidates := []model.DestKey{userDefault}
	for _, env := range []string{"LPDEST", "PRINTER"} {
		v := strings.TrimSpace(os.Getenv(env))
		if v == "" || (env == "PRINTER" && v == "lp") {
			continue
		}
		candidates = append(candidates, model.ParseKey(v))
	}
	for _, k := range candidates {
		if k.IsDefaultAlias() {
			continue
		}
		if _, ok := dests[k]; ok {
			return k, true, nil
		}
		s.log.Debug().Str("dest", k.String()).Msg("default destination not found")
	}
	name, err := s.GetDefault(ctx)
	if err != nil {
		return model.DestKey{}, false, err
	}
	k := model.Key(name, "")
	if _, ok := dests[k]; name == "" || !ok {
		return model.DestKey{}, false, nil
	}
	return k, true, nil
}
