package baseline

import (
	"fmt"
	"strings"
)

// DriftKind classifies a difference between two snapshots.
type DriftKind string

const (
	DriftStatus  DriftKind = "status"
	DriftShape   DriftKind = "shape"
	DriftMissing DriftKind = "missing"
	DriftNew     DriftKind = "new"
)

// Drift is one difference between a recorded baseline and the current run.
type Drift struct {
	Kind   DriftKind `json:"kind"`
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Detail string    `json:"detail,omitempty"`
}

func (d Drift) String() string {
	s := fmt.Sprintf("%s %s %s", d.Kind, d.Method, d.Path)
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}

type exchangeKey struct {
	method, path string
	n            int
}

func keyed(exchanges []Exchange) ([]exchangeKey, map[exchangeKey]Exchange) {
	counts := make(map[string]int)
	keys := make([]exchangeKey, 0, len(exchanges))
	byKey := make(map[exchangeKey]Exchange, len(exchanges))
	for _, ex := range exchanges {
		id := ex.Method + " " + ex.Path
		k := exchangeKey{method: ex.Method, path: ex.Path, n: counts[id]}
		counts[id]++
		keys = append(keys, k)
		byKey[k] = ex
	}
	return keys, byKey
}

// Compare reports how current differs from the recorded baseline.
// Exchanges are matched by method, normalized path and occurrence order.
// A nil baseline yields no drift.
func Compare(recorded, current *Snapshot) []Drift {
	if recorded == nil || current == nil {
		return nil
	}

	oldKeys, oldByKey := keyed(recorded.Exchanges)
	newKeys, newByKey := keyed(current.Exchanges)

	var drifts []Drift
	for _, k := range oldKeys {
		was := oldByKey[k]
		now, ok := newByKey[k]
		if !ok {
			drifts = append(drifts, Drift{Kind: DriftMissing, Method: k.method, Path: k.path})
			continue
		}
		if was.Status != now.Status {
			drifts = append(drifts, Drift{
				Kind: DriftStatus, Method: k.method, Path: k.path,
				Detail: fmt.Sprintf("%d -> %d", was.Status, now.Status),
			})
		}
		if was.Fingerprint != now.Fingerprint {
			drifts = append(drifts, Drift{
				Kind: DriftShape, Method: k.method, Path: k.path,
				Detail: shapeDetail(was.Shape, now.Shape),
			})
		}
	}
	for _, k := range newKeys {
		if _, ok := oldByKey[k]; !ok {
			drifts = append(drifts, Drift{Kind: DriftNew, Method: k.method, Path: k.path})
		}
	}
	return drifts
}

func shapeDetail(was, now string) string {
	if was == "" || now == "" {
		return "fingerprint changed"
	}
	return fmt.Sprintf("%s -> %s", abbreviate(was), abbreviate(now))
}

func abbreviate(s string) string {
	const limit = 120
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
