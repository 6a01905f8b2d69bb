package fitable

import (
	"encoding/json"

	"github.com/go-kratos/kratos/v2/log"
)

// separator is the fixed literal joining the two halves of a group or
// service name. Collisions are prevented by the separator being disallowed
// in genericable/fitable identifiers (documented contract, not enforced
// here — callers own their identifier strings).
const separator = "::"

// Metadata keys used in the registry's per-instance metadata map.
const (
	MetadataKeyWorker                    = "worker"
	MetadataKeyApplication                = "application"
	MetadataKeyFitableMeta                = "fitable-meta"
	MetadataKeyHeartbeatInterval           = "preserved.heart.beat.interval"
	MetadataKeyHeartbeatTimeout            = "preserved.heart.beat.timeout"
)

// ServiceName returns the registry-native service name for a Fitable. It
// depends only on f's own fields; together with GroupName the resulting
// (group, service) pair is injective.
func ServiceName(f Fitable) string {
	return f.FitableID + separator + f.FitableVersion
}

// GroupName returns the registry-native group name for a Fitable.
func GroupName(f Fitable) string {
	return f.GenericableID + separator + f.GenericableVersion
}

// GroupNameForGenericable returns the registry-native group name for a
// Genericable directly (same pattern as GroupName).
func GroupNameForGenericable(g Genericable) string {
	return g.GenericableID + separator + g.GenericableVersion
}

// SubscriptionKey returns the Subscription Registry key for a (group,
// service) pair.
func SubscriptionKey(group, service string) string {
	return group + separator + service
}

// defaultApplication is substituted when Application metadata fails to
// decode.
func defaultApplication() Application {
	return Application{Name: "unknown", NameVersion: "unknown"}
}

// defaultWorker is substituted when Worker metadata fails to decode.
func defaultWorker() Worker {
	return Worker{
		Addresses:   nil,
		ID:          "unknown",
		Environment: "",
		Extensions:  map[string]string{},
	}
}

// defaultFitableMeta is substituted when FitableMeta metadata fails to
// decode. It wraps a sentinel Fitable so callers can still group by it.
func defaultFitableMeta() FitableMeta {
	return FitableMeta{
		Fitable: Fitable{
			GenericableID:      "unknown",
			GenericableVersion: "unknown",
			FitableID:          "unknown",
			FitableVersion:     "unknown",
		},
	}
}

// TryDecodeWorker decodes the "worker" metadata value without substituting
// a default on failure, so callers that need to distinguish "decoded" from
// "unidentifiable" (e.g. unregister's per-instance worker-id match) can
// skip rather than risk matching against a sentinel identity.
func TryDecodeWorker(raw string) (Worker, bool) {
	if raw == "" {
		return Worker{}, false
	}
	var w Worker
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Worker{}, false
	}
	return w, true
}

// DecodeWorker decodes the "worker" metadata value. Decode failures are
// logged at error level and a conservative default is returned; they are
// never fatal (spec invariant 3).
func DecodeWorker(logger *log.Helper, raw string) Worker {
	w, ok := TryDecodeWorker(raw)
	if !ok {
		logger.Errorf("failed to decode worker metadata, substituting default")
		return defaultWorker()
	}
	return w
}

// DecodeApplication decodes the "application" metadata value, with the same
// never-fatal default-substitution contract as DecodeWorker.
func DecodeApplication(logger *log.Helper, raw string) Application {
	var a Application
	if raw == "" {
		logger.Errorf("application metadata missing, substituting default")
		return defaultApplication()
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		logger.Errorf("failed to decode application metadata: %v", err)
		return defaultApplication()
	}
	return a
}

// DecodeFitableMeta decodes the "fitable-meta" metadata value, with the
// same never-fatal default-substitution contract as DecodeWorker.
func DecodeFitableMeta(logger *log.Helper, raw string) FitableMeta {
	var m FitableMeta
	if raw == "" {
		logger.Errorf("fitable-meta metadata missing, substituting default")
		return defaultFitableMeta()
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logger.Errorf("failed to decode fitable-meta metadata: %v", err)
		return defaultFitableMeta()
	}
	return m
}

// EncodeWorker JSON-encodes a Worker for the "worker" metadata key.
func EncodeWorker(w Worker) (string, error) {
	b, err := json.Marshal(w)
	return string(b), err
}

// EncodeApplication JSON-encodes an Application for the "application"
// metadata key.
func EncodeApplication(a Application) (string, error) {
	b, err := json.Marshal(a)
	return string(b), err
}

// EncodeFitableMeta JSON-encodes a FitableMeta for the "fitable-meta"
// metadata key.
func EncodeFitableMeta(m FitableMeta) (string, error) {
	b, err := json.Marshal(m)
	return string(b), err
}
