package timeline

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/brennhill/soulbrowser-agent/internal/eventstore"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
)

// ReplayEvent is one timeline entry in a ReplayBundle. DeltaMs is relative
// to the action's first event; Digest is a stable fingerprint of the payload
// so a consumer can detect divergence between two replays without shipping
// the full payloads.
type ReplayEvent struct {
	DeltaMs int64  `json:"delta_ms"`
	Kind    string `json:"kind"`
	Digest  string `json:"digest"`
}

// Evidence groups the artifact ids referenced by an action's events,
// classified by kind prefix: pix* events carry screenshot-style artifacts,
// struct* events carry structured captures.
type Evidence struct {
	Pix     []string `json:"pix"`
	Structs []string `json:"structs"`
}

// ReplayBundle is the minimal self-contained record needed to replay one
// action.
type ReplayBundle struct {
	ActionID string        `json:"action_id"`
	Timeline []ReplayEvent `json:"timeline"`
	Evidence Evidence      `json:"evidence"`
	Summary  interface{}   `json:"summary"`
}

// Replay builds a ReplayBundle for actionID from its retained events.
func (r *Reader) Replay(actionID string) (ReplayBundle, error) {
	events := r.Store.ByAction(actionID)
	if len(events) == 0 {
		return ReplayBundle{}, soulerr.New(soulerr.Unavailable, "no events retained for action "+actionID)
	}

	start := events[0].TsMono
	bundle := ReplayBundle{ActionID: actionID, Timeline: make([]ReplayEvent, 0, len(events))}
	kinds := make(map[string]int)

	for _, e := range events {
		bundle.Timeline = append(bundle.Timeline, ReplayEvent{
			DeltaMs: e.TsMono - start,
			Kind:    e.Kind,
			Digest:  payloadDigest(e.Payload),
		})
		kinds[e.Kind]++

		switch {
		case strings.HasPrefix(e.Kind, "pix"):
			bundle.Evidence.Pix = append(bundle.Evidence.Pix, artifactID(e))
		case strings.HasPrefix(e.Kind, "struct"):
			bundle.Evidence.Structs = append(bundle.Evidence.Structs, artifactID(e))
		}
	}

	bundle.Summary = map[string]interface{}{
		"event_count": len(events),
		"kinds":       kinds,
		"span_ms":     events[len(events)-1].TsMono - start,
	}
	return bundle, nil
}

func payloadDigest(payload interface{}) string {
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", payload))
	}
	h := fnv.New64a()
	h.Write(b)
	return fmt.Sprintf("%016x", h.Sum64())
}

// artifactID resolves the artifact id an evidence event refers to: an
// explicit artifact_id in the payload wins, else a synthetic kind/seq id.
func artifactID(e eventstore.Envelope) string {
	if m, ok := e.Payload.(map[string]interface{}); ok {
		if id, ok := m["artifact_id"].(string); ok && id != "" {
			return id
		}
	}
	return fmt.Sprintf("%s/%d", e.Kind, e.Seq)
}
