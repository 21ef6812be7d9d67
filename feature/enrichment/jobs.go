package enrichment

import "strings"

// SkipColumn marks a result cell that is read but not written.
const SkipColumn = "-"

// Job is a search query whose result cells are written onto an existing kind table.
type Job struct {
	// Name identifies the job in logs and reports.
	Name string `json:"name"`
	// Kind is the entity kind whose table receives the values.
	Kind string `json:"kind"`
	// Query is the search query sent to the appliance.
	Query string `json:"query"`
	// Columns maps result cells by position onto table columns. One of them is "id".
	Columns []string `json:"columns"`
}

// written returns the columns the job writes, in result order.
func (j Job) written() []string {
	out := make([]string, 0, len(j.Columns))
	for _, col := range j.Columns {
		if col != SkipColumn {
			out = append(out, col)
		}
	}
	return out
}

// DefaultJobs returns the built-in enrichment jobs.
func DefaultJobs() []Job {
	return []Job{
		{
			// name is only selected to keep the query readable; the detail record owns it.
			Name: "host_uptime",
			Kind: "Host",
			Query: "search Host show name, #id as 'nodeid', " +
				"#InferredElement:Inference:Primary:HostInfo.uptime as 'Uptime Days', " +
				"friendlyTime(creationTime(#)) as 'creation_time'",
			Columns: []string{SkipColumn, "id", "uptime_days", "creation_time"},
		},
		{
			Name: "software_publisher",
			Kind: "SoftwareInstance",
			Query: "search SoftwareInstance show #id as 'nodeid', " +
				"#ElementWithDetail:SupportDetail:SoftwareDetail:SupportDetail.publisher as 'Software / OS Publisher'",
			Columns: []string{"id", "publisher"},
		},
	}
}

// JobsFor returns the jobs that enrich kind.
func JobsFor(jobs []Job, kind string) []Job {
	var out []Job
	for _, j := range jobs {
		if strings.EqualFold(j.Kind, kind) {
			out = append(out, j)
		}
	}
	return out
}
