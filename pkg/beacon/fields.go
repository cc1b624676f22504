package beacon

import (
	"fmt"
	"slices"
	"strings"
)

// Field is a named, read-only record attribute. Names are snake_case, e.g.
// "event_number" or "trigger_thresholds".
type Field struct {
	Name     string
	Category Category

	value func(rec any) any
}

// Value extracts the field from rec, which must be a *Header, *Status or
// *Event matching the field's category.
func (f Field) Value(rec any) any {
	return f.value(rec)
}

// QualifiedName is "category.name", which is unambiguous for fields that
// exist in several categories (deadtime, readout_time, board_id).
func (f Field) QualifiedName() string {
	return string(f.Category) + "." + f.Name
}

func headerField(name string, get func(h *Header) any) Field {
	return Field{Name: name, Category: CategoryHeader, value: func(rec any) any { return get(rec.(*Header)) }}
}

func statusField(name string, get func(s *Status) any) Field {
	return Field{Name: name, Category: CategoryStatus, value: func(rec any) any { return get(rec.(*Status)) }}
}

func eventField(name string, get func(e *Event) any) Field {
	return Field{Name: name, Category: CategoryEvent, value: func(rec any) any { return get(rec.(*Event)) }}
}

var headerFields = []Field{
	headerField("event_number", func(h *Header) any { return h.EventNumber }),
	headerField("trig_number", func(h *Header) any { return h.TrigNumber }),
	headerField("buffer_length", func(h *Header) any { return h.BufferLength }),
	headerField("pretrigger_samples", func(h *Header) any { return h.PretriggerSamples }),
	headerField("readout_time", func(h *Header) any { return h.ReadoutTime }),
	headerField("readout_time_ns", func(h *Header) any { return h.ReadoutTimeNs }),
	headerField("approx_trigger_time", func(h *Header) any { return h.ApproxTriggerTime }),
	headerField("approx_trigger_time_nsecs", func(h *Header) any { return h.ApproxTriggerTimeNs }),
	headerField("triggered_beams", func(h *Header) any { return h.TriggeredBeams }),
	headerField("beam_mask", func(h *Header) any { return h.BeamMask }),
	headerField("beam_power", func(h *Header) any { return h.BeamPower }),
	headerField("deadtime", func(h *Header) any { return h.Deadtime }),
	headerField("buffer_number", func(h *Header) any { return h.BufferNumber }),
	headerField("channel_mask", func(h *Header) any { return h.ChannelMask }),
	headerField("channel_read_mask", func(h *Header) any { return h.ChannelReadMask }),
	headerField("gate_flag", func(h *Header) any { return h.GateFlag }),
	headerField("buffer_mask", func(h *Header) any { return h.BufferMask }),
	headerField("board_id", func(h *Header) any { return h.BoardID }),
	headerField("trig_type", func(h *Header) any { return h.TrigType }),
	headerField("trig_pol", func(h *Header) any { return h.TrigPol }),
	headerField("calpulser", func(h *Header) any { return h.Calpulser }),
	headerField("sync_problem", func(h *Header) any { return h.SyncProblem }),
}

var statusFields = []Field{
	statusField("global_scalers", func(s *Status) any { return s.GlobalScalers }),
	statusField("beam_scalers", func(s *Status) any { return s.BeamScalers }),
	statusField("deadtime", func(s *Status) any { return s.Deadtime }),
	statusField("readout_time", func(s *Status) any { return s.ReadoutTime }),
	statusField("readout_time_ns", func(s *Status) any { return s.ReadoutTimeNs }),
	statusField("trigger_thresholds", func(s *Status) any { return s.TriggerThresholds }),
	statusField("latched_pps_time", func(s *Status) any { return s.LatchedPPSTime }),
	statusField("board_id", func(s *Status) any { return s.BoardID }),
	statusField("dynamic_beam_mask", func(s *Status) any { return s.DynamicBeamMask }),
}

var eventFields = []Field{
	eventField("event_number", func(e *Event) any { return e.EventNumber }),
	eventField("buffer_length", func(e *Event) any { return e.BufferLength }),
	eventField("board_id", func(e *Event) any { return e.BoardID }),
	eventField("data", func(e *Event) any {
		out := make([][]uint8, 0, MaxBoards*NumChan)
		for b := range MaxBoards {
			for c := range NumChan {
				out = append(out, slices.Clone(e.Channel(b, c)))
			}
		}

		return out
	}),
}

// Fields returns the fields of category c in declaration order.
func Fields(c Category) ([]Field, error) {
	switch c {
	case CategoryHeader:
		return slices.Clone(headerFields), nil
	case CategoryStatus:
		return slices.Clone(statusFields), nil
	case CategoryEvent:
		return slices.Clone(eventFields), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
}

// LookupField finds a field by name. A bare name is searched in status,
// then header, then event fields; "category.name" selects the category
// explicitly.
func LookupField(name string) (Field, error) {
	if cat, field, ok := strings.Cut(name, "."); ok {
		c, err := ParseCategory(cat)
		if err != nil {
			return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}

		fields, _ := Fields(c)
		for _, f := range fields {
			if f.Name == field {
				return f, nil
			}
		}

		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	for _, fields := range [][]Field{statusFields, headerFields, eventFields} {
		for _, f := range fields {
			if f.Name == name {
				return f, nil
			}
		}
	}

	return Field{}, fmt.Errorf("%w: %q is not a header, status or event field", ErrUnknownField, name)
}

// SplitAttrs splits a colon-separated attribute list such as
// "event_number:readout_time".
func SplitAttrs(expr string) []string {
	names := strings.Split(expr, ":")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	return names
}

// Scan walks entries [offset, offset+limit) and calls fn with the value of
// every attribute at that entry, in the order given. Categories are zipped
// by index, so the scan stops at the shortest category involved.
// limit <= 0 means no limit. Returning false from fn stops the scan.
// Each call gets a new values slice, which fn may keep.
//
// Returns [ErrUnknownField] before reading anything if an attribute does
// not exist.
func (r *Run) Scan(attrs []string, offset, limit int, fn func(entry int, values []any) bool) error {
	fields := make([]Field, 0, len(attrs))

	for _, attr := range attrs {
		f, err := LookupField(attr)
		if err != nil {
			return err
		}

		fields = append(fields, f)
	}

	if offset < 0 {
		offset = 0
	}

	n := -1

	for _, c := range Categories {
		if !usesCategory(fields, c) {
			continue
		}

		count, err := r.Len(c)
		if err != nil {
			return err
		}

		if n < 0 || count < n {
			n = count
		}
	}

	if n < 0 {
		return nil
	}

	end := n
	if limit > 0 {
		end = min(n, offset+limit)
	}

	for entry := offset; entry < end; entry++ {
		values := make([]any, len(fields))
		records := make(map[Category]any, len(Categories))

		for i, f := range fields {
			rec, ok := records[f.Category]
			if !ok {
				var err error

				rec, err = r.Record(f.Category, entry)
				if err != nil {
					return fmt.Errorf("scan entry %d: %w", entry, err)
				}

				records[f.Category] = rec
			}

			values[i] = f.Value(rec)
		}

		if !fn(entry, values) {
			return nil
		}
	}

	return nil
}

func usesCategory(fields []Field, c Category) bool {
	return slices.ContainsFunc(fields, func(f Field) bool { return f.Category == c })
}
