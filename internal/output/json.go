package output

import (
	"encoding/json"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRun renders a run summary as JSON.
func (f *JSONFormatter) FormatRun(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return f.marshal(summary)
}

// FormatRuns renders run history as a JSON array.
func (f *JSONFormatter) FormatRuns(runs []core.RunSummary) (string, error) {
	if runs == nil {
		runs = []core.RunSummary{}
	}
	return f.marshal(runs)
}

// FormatSnapshots renders throttle snapshots as a JSON array.
func (f *JSONFormatter) FormatSnapshots(snapshots []core.ThrottleSnapshot) (string, error) {
	if snapshots == nil {
		snapshots = []core.ThrottleSnapshot{}
	}
	return f.marshal(snapshots)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
