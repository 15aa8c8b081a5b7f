package history

import (
	"encoding/json"
	"fmt"
	"sort"

	"poem-backend/internal/domain"
)

// InitialVersion is the comment of the very first history row of any
// entity, recorded verbatim instead of a diff descriptor list.
const InitialVersion = "Initial version."

// Change actions, in the order they are rendered.
const (
	ActionAdded   = "added"
	ActionChanged = "changed"
	ActionDeleted = "deleted"
)

// Change is one machine-readable change descriptor. Fields lists the
// affected field names; Object, when present, narrows the change to
// sub-keys of a keyed-collection field.
type Change struct {
	Action string
	Fields []string
	Object []string
}

type changeBody struct {
	Fields []string `json:"fields"`
	Object []string `json:"object,omitempty"`
}

// MarshalJSON renders the stored descriptor shape, e.g.
// {"changed": {"fields": ["config"], "object": ["timeout"]}}.
func (c Change) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]changeBody{c.Action: {Fields: c.Fields, Object: c.Object}})
}

// UnmarshalJSON parses a stored descriptor back.
func (c *Change) UnmarshalJSON(b []byte) error {
	var m map[string]changeBody
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for _, action := range []string{ActionAdded, ActionChanged, ActionDeleted} {
		if body, ok := m[action]; ok {
			c.Action = action
			c.Fields = body.Fields
			c.Object = body.Object
			return nil
		}
	}
	return fmt.Errorf("change descriptor has no recognized action: %s", string(b))
}

// CreateComment diffs the current snapshot against the previous one and
// returns the JSON-encoded descriptor list stored as the version
// comment. A nil previous snapshot means this is the entity's first
// history row, which always yields InitialVersion regardless of field
// contents. Malformed inline data is a write-path bug and surfaces as
// an error, never as a silent skip.
func CreateComment(fields []FieldSpec, prev, cur domain.Snapshot) (string, error) {
	if prev == nil {
		return InitialVersion, nil
	}

	sorted := append([]FieldSpec(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var scalarAdded, scalarChanged, scalarDeleted []string
	var keyed []Change

	for _, f := range sorted {
		oldVal, oldOK := prev[f.Name]
		curVal, curOK := cur[f.Name]
		if !oldOK && !curOK {
			continue
		}
		// Field set changed between snapshots (model evolution): the
		// whole field is reported without sub-key granularity, even for
		// keyed collections.
		if !oldOK {
			if curVal != "" {
				scalarAdded = append(scalarAdded, f.Name)
			}
			continue
		}
		if !curOK {
			if oldVal != "" {
				scalarDeleted = append(scalarDeleted, f.Name)
			}
			continue
		}
		if oldVal == curVal {
			continue
		}

		switch f.Kind {
		case Scalar:
			switch {
			case oldVal == "":
				scalarAdded = append(scalarAdded, f.Name)
			case curVal == "":
				scalarDeleted = append(scalarDeleted, f.Name)
			default:
				scalarChanged = append(scalarChanged, f.Name)
			}
		case InstanceList:
			changes, err := diffInstances(f.Name, oldVal, curVal)
			if err != nil {
				return "", err
			}
			keyed = append(keyed, changes...)
		default:
			changes, err := diffKeyed(f, oldVal, curVal)
			if err != nil {
				return "", err
			}
			keyed = append(keyed, changes...)
		}
	}

	out := make([]Change, 0, 3+len(keyed))
	if len(scalarAdded) > 0 {
		out = append(out, Change{Action: ActionAdded, Fields: scalarAdded})
	}
	if len(scalarChanged) > 0 {
		out = append(out, Change{Action: ActionChanged, Fields: scalarChanged})
	}
	if len(scalarDeleted) > 0 {
		out = append(out, Change{Action: ActionDeleted, Fields: scalarDeleted})
	}
	out = append(out, keyed...)

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode version comment: %w", err)
	}
	return string(b), nil
}

// diffKeyed computes per-sub-key descriptors for pair-list, rule and
// group fields. Pair lists and group lists collect all affected keys of
// one action into a single descriptor; rules get one descriptor per
// metric so the humanized sentence stays well-formed.
func diffKeyed(f FieldSpec, oldVal, curVal string) ([]Change, error) {
	oldKeys, err := decomposeKeyed(f, oldVal)
	if err != nil {
		return nil, err
	}
	curKeys, err := decomposeKeyed(f, curVal)
	if err != nil {
		return nil, err
	}

	var added, changed, deleted []string
	for k, v := range curKeys {
		old, ok := oldKeys[k]
		switch {
		case !ok:
			added = append(added, k)
		case old != v:
			changed = append(changed, k)
		}
	}
	for k := range oldKeys {
		if _, ok := curKeys[k]; !ok {
			deleted = append(deleted, k)
		}
	}
	sort.Strings(added)
	sort.Strings(changed)
	sort.Strings(deleted)

	var out []Change
	emit := func(action string, keys []string) {
		if len(keys) == 0 {
			return
		}
		if f.Kind == RuleList {
			for _, k := range keys {
				out = append(out, Change{Action: action, Fields: []string{f.Name}, Object: []string{k}})
			}
			return
		}
		out = append(out, Change{Action: action, Fields: []string{f.Name}, Object: keys})
	}
	emit(ActionAdded, added)
	emit(ActionChanged, changed)
	emit(ActionDeleted, deleted)
	return out, nil
}

// decomposeKeyed maps a keyed-collection field value to sub-key ->
// canonical sub-value.
func decomposeKeyed(f FieldSpec, raw string) (map[string]string, error) {
	switch f.Kind {
	case PairList:
		pairs, err := domain.DecodePairs(raw)
		if err != nil {
			return nil, err
		}
		m := make(map[string]string, len(pairs))
		for _, p := range pairs {
			m[p.Key] = p.Value
		}
		return m, nil
	case RuleList:
		var rules []domain.ThresholdsRule
		if err := decodeList(raw, &rules); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.Name, err)
		}
		m := make(map[string]string, len(rules))
		for _, r := range rules {
			body, _ := json.Marshal(r)
			m[r.Metric] = string(body)
		}
		return m, nil
	case GroupList:
		var groups []domain.AggregationGroup
		if err := decodeList(raw, &groups); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.Name, err)
		}
		m := make(map[string]string, len(groups))
		for _, g := range groups {
			body, _ := json.Marshal(g)
			m[g.Name] = string(body)
		}
		return m, nil
	}
	return nil, fmt.Errorf("field %s is not a keyed collection", f.Name)
}

// diffInstances emits one descriptor per added or deleted
// (service, metric) tuple. A tuple is its own identity, so a "changed"
// outcome cannot occur.
func diffInstances(field, oldVal, curVal string) ([]Change, error) {
	var oldList, curList []domain.MetricInstance
	if err := decodeList(oldVal, &oldList); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", field, err)
	}
	if err := decodeList(curVal, &curList); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", field, err)
	}

	oldSet := make(map[domain.MetricInstance]bool, len(oldList))
	for _, in := range oldList {
		oldSet[in] = true
	}
	curSet := make(map[domain.MetricInstance]bool, len(curList))
	for _, in := range curList {
		curSet[in] = true
	}

	var added, deleted []domain.MetricInstance
	for _, in := range curList {
		if !oldSet[in] {
			added = append(added, in)
		}
	}
	for _, in := range oldList {
		if !curSet[in] {
			deleted = append(deleted, in)
		}
	}
	sortInstances(added)
	sortInstances(deleted)

	var out []Change
	for _, in := range added {
		out = append(out, Change{Action: ActionAdded, Fields: []string{field}, Object: []string{in.Service, in.Metric}})
	}
	for _, in := range deleted {
		out = append(out, Change{Action: ActionDeleted, Fields: []string{field}, Object: []string{in.Service, in.Metric}})
	}
	return out, nil
}

func sortInstances(list []domain.MetricInstance) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Service != list[j].Service {
			return list[i].Service < list[j].Service
		}
		return list[i].Metric < list[j].Metric
	})
}

// decodeList unmarshals a snapshot field holding a JSON array, treating
// "" as the empty list per the stored convention.
func decodeList(raw string, out any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
