package inventory

import (
	"sort"
	"strings"

	"discovery-sync/core/reconcile"
	"discovery-sync/core/utils"
)

// Logical columns with special expansion rules.
const (
	ColumnID           = "id"
	ColumnAllIPAddrs   = "__all_ip_addrs"
	ColumnAllMACAddrs  = "__all_mac_addrs"
	ColumnIPv4         = "ipv4"
	ColumnIPv6         = "ipv6"
	ColumnMACAddresses = "mac_addresses"
)

// Projection is the ordered list of logical columns mirrored for a kind.
type Projection []string

// DefaultProjections returns the built-in projections keyed by lower-cased kind.
func DefaultProjections() map[string]Projection {
	return map[string]Projection{
		"host":             {"id", "key", "uuid", "name", "logical_ram", "dns_domain", ColumnAllIPAddrs, ColumnAllMACAddrs},
		"virtualmachine":   {"id", "key", "uuid", "name"},
		"softwareinstance": {"id", "key", "name"},
	}
}

// ProjectionFor resolves the projection of kind. Configured overrides win over the
// defaults; unknown kinds mirror only the id.
func ProjectionFor(kind string, overrides map[string][]string) Projection {
	lower := strings.ToLower(kind)
	if cols, ok := overrides[lower]; ok && len(cols) > 0 {
		return Projection(cols)
	}
	if p, ok := DefaultProjections()[lower]; ok {
		return p
	}
	return Projection{ColumnID}
}

// Columns returns the physical table columns, with the address tokens expanded.
func (p Projection) Columns() []string {
	var cols []string
	seen := make(map[string]struct{})
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	for _, col := range p {
		switch col {
		case ColumnAllIPAddrs:
			add(ColumnIPv4)
			add(ColumnIPv6)
		case ColumnAllMACAddrs:
			add(ColumnMACAddresses)
		default:
			add(col)
		}
	}
	return cols
}

// Project builds the stored row of a node from its detail record.
// The id always comes from the listing, never from the record.
func (p Projection) Project(id string, detail map[string]any) reconcile.Row {
	flat := Flatten(detail)
	row := reconcile.Row{ColumnID: utils.StringPtr(id)}

	for _, col := range p {
		switch col {
		case ColumnID:
		case ColumnAllIPAddrs:
			v4, v6 := splitAddresses(lookupValue(flat, col))
			row[ColumnIPv4] = utils.StringPtr(v4)
			row[ColumnIPv6] = utils.StringPtr(v6)
		case ColumnAllMACAddrs:
			row[ColumnMACAddresses] = utils.StringPtr(joinList(lookupValue(flat, col)))
		default:
			row.Set(col, lookupValue(flat, col))
		}
	}
	return row
}

// Flatten folds nested objects into a single level joining keys with "_".
// Lists are kept as values.
func Flatten(detail map[string]any) map[string]any {
	out := make(map[string]any, len(detail))
	flattenInto(out, "", detail)
	return out
}

func flattenInto(out map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// lookupValue finds col in a flattened record: the exact key first, otherwise the
// lexicographically first key ending in "_col" or ".col". Missing means nil.
func lookupValue(flat map[string]any, col string) any {
	if v, ok := flat[col]; ok {
		return v
	}
	var matches []string
	for k := range flat {
		if strings.HasSuffix(k, "_"+col) || strings.HasSuffix(k, "."+col) {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	return flat[matches[0]]
}

// splitAddresses separates a list of addresses into IPv4 and IPv6 strings.
// Anything that is not a list yields two empty strings.
func splitAddresses(v any) (string, string) {
	list, ok := v.([]any)
	if !ok {
		return "", ""
	}
	var v4, v6 []string
	for _, item := range list {
		addr := cleanItem(item)
		if strings.Contains(addr, ":") {
			v6 = append(v6, addr)
		} else {
			v4 = append(v4, addr)
		}
	}
	return strings.Join(v4, ", "), strings.Join(v6, ", ")
}

func joinList(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	items := make([]string, len(list))
	for i, item := range list {
		items[i] = cleanItem(item)
	}
	return strings.Join(items, ", ")
}

func cleanItem(item any) string {
	return strings.Trim(utils.ToString(item), `'"`)
}
