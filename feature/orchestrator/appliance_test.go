package orchestrator

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

var longAttribute = strings.Repeat("x", 80)

// fakeAppliance serves a small discovery API: 25 hosts over three pages, two
// software instances and no virtual machines.
type fakeAppliance struct {
	hosts int

	mu       sync.Mutex
	requests map[string]int
}

func newFakeAppliance(t *testing.T, hosts int) (*fakeAppliance, *httptest.Server) {
	t.Helper()
	f := &fakeAppliance{hosts: hosts, requests: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAppliance) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeAppliance) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	f.mu.Lock()
	f.requests[path]++
	f.mu.Unlock()

	q := r.URL.Query()
	switch {
	case path == "/data/kinds/Host":
		f.hostPage(w, q.Get("offset"))
	case path == "/data/kinds/SoftwareInstance":
		writeJSON(w, []any{map[string]any{"results": []any{[]any{"s1"}, []any{"s2"}}}})
	case strings.HasPrefix(path, "/data/kinds/"):
		writeJSON(w, []any{map[string]any{"results": []any{}}})
	case strings.HasSuffix(path, "/graph"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/data/nodes/"), "/graph")
		f.graph(w, id, q.Get("focus"))
	case strings.HasPrefix(path, "/data/nodes/"):
		f.node(w, strings.TrimPrefix(path, "/data/nodes/"))
	case path == "/data/search":
		f.search(w, q.Get("query"))
	default:
		http.NotFound(w, r)
	}
}

func hostID(i int) string {
	return fmt.Sprintf("h%02d", i)
}

func (f *fakeAppliance) hostPage(w http.ResponseWriter, offset string) {
	start := 0
	if offset != "" {
		start, _ = strconv.Atoi(offset)
	}
	end := min(start+10, f.hosts)

	rows := []any{}
	for i := start; i < end; i++ {
		rows = append(rows, []any{hostID(i)})
	}
	page := map[string]any{"results": rows}
	if end < f.hosts {
		page["next_offset"] = end
		page["results_id"] = "r1"
	}
	writeJSON(w, []any{page})
}

func (f *fakeAppliance) node(w http.ResponseWriter, id string) {
	if strings.HasPrefix(id, "s") {
		writeJSON(w, map[string]any{"kind": "SoftwareInstance", "name": "app-" + id})
		return
	}
	writeJSON(w, map[string]any{
		"kind":           "Host",
		"name":           "host-" + id,
		longAttribute:    "long",
		"__all_ip_addrs": []any{"10.0.0.1", "fe80::1"},
	})
}

func (f *fakeAppliance) graph(w http.ResponseWriter, id, focus string) {
	links := []any{}
	if strings.HasPrefix(id, "h") && focus == "software" {
		links = append(links,
			map[string]any{"rel_id": "rel-" + id, "kind": "HostedSoftware", "src_id": id, "src_role": "Host", "src_kind": "Host", "tgt_id": "s1", "tgt_role": "RunningSoftware"},
			map[string]any{"rel_id": "rel-shared", "kind": "Dependency", "src_id": id, "src_role": "Host", "src_kind": "Host", "tgt_id": "s2", "tgt_role": "Dependant", "tgt_kind": "SoftwareInstance"},
			map[string]any{"rel_id": "peer-" + id, "kind": "Peer", "src_id": id, "src_role": "Host", "src_kind": "Host", "tgt_id": "h00", "tgt_role": "Host", "tgt_kind": "Host"},
		)
	}
	writeJSON(w, map[string]any{"links": links})
}

func (f *fakeAppliance) search(w http.ResponseWriter, query string) {
	rows := []any{}
	switch {
	case strings.HasPrefix(query, "search Host"):
		for i := 0; i < f.hosts; i++ {
			rows = append(rows, []any{"host-" + hostID(i), hostID(i), i, "2024-01-01"})
		}
	case strings.HasPrefix(query, "search SoftwareInstance"):
		rows = append(rows, []any{"s1", "Acme"}, []any{"s2", nil})
	case strings.HasPrefix(query, "Search FLAGS"):
		rows = append(rows,
			[]any{"old01", "2 days ago", "k1", "x1"},
			[]any{"old01", "1 day ago", "k1", "x1"},
			[]any{"old02", "1 week ago", "k2", "x2"},
		)
	}
	writeJSON(w, []any{map[string]any{"results": rows}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
