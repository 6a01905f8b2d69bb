package fitable

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
)

// clusterPortPattern matches extension keys of the form
// "cluster.<proto>.port" used to reconstruct endpoints when a Worker is
// rebuilt from instance metadata rather than built directly.
var clusterPortPattern = regexp.MustCompile(`^cluster\.(.*?)\.port$`)

// BuildOptions carries the configuration-derived defaults the Instance
// Builder needs (spec.md §4.B): per-instance weight and ephemeral flag.
type BuildOptions struct {
	Weight    float64
	Ephemeral bool
}

// DefaultBuildOptions returns the spec's documented defaults.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Weight: 1.0, Ephemeral: true}
}

// InstanceDescriptor is one registry-ready instance, ready to be submitted
// as a register_instance call.
type InstanceDescriptor struct {
	IP        string
	Port      uint16
	Weight    float64
	Ephemeral bool
	Metadata  map[string]string
}

// BuildInstances expands one (worker, application, meta) triple into the
// ordered sequence of instance descriptors the registry must see: one per
// (address, endpoint) pair (spec.md §4.B, invariant 2).
func BuildInstances(logger *log.Helper, worker Worker, application Application, meta FitableMeta, opts BuildOptions, heartbeatIntervalMS, heartbeatTimeoutMS int) ([]InstanceDescriptor, error) {
	metadata, err := buildMetadata(worker, application, meta, heartbeatIntervalMS, heartbeatTimeoutMS)
	if err != nil {
		return nil, err
	}

	descriptors := make([]InstanceDescriptor, 0)
	for _, addr := range worker.Addresses {
		for _, ep := range addr.Endpoints {
			descriptors = append(descriptors, InstanceDescriptor{
				IP:        addr.Host,
				Port:      ep.Port,
				Weight:    opts.Weight,
				Ephemeral: opts.Ephemeral,
				Metadata:  metadata,
			})
		}
	}
	return descriptors, nil
}

func buildMetadata(worker Worker, application Application, meta FitableMeta, heartbeatIntervalMS, heartbeatTimeoutMS int) (map[string]string, error) {
	workerJSON, err := EncodeWorker(worker)
	if err != nil {
		return nil, err
	}
	appJSON, err := EncodeApplication(application)
	if err != nil {
		return nil, err
	}
	metaJSON, err := EncodeFitableMeta(meta)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		MetadataKeyWorker:           workerJSON,
		MetadataKeyApplication:      appJSON,
		MetadataKeyFitableMeta:      metaJSON,
		MetadataKeyHeartbeatInterval: strconv.Itoa(heartbeatIntervalMS),
		MetadataKeyHeartbeatTimeout:  strconv.Itoa(heartbeatTimeoutMS),
	}, nil
}

// ReconstructAddresses rebuilds the endpoints a Worker listens on from its
// Extensions map, matching keys of the form "cluster.<proto>.port". The
// captured protocol name is lower-cased and looked up; unknown protocols are
// dropped with a logged error rather than failing the whole reconstruction.
func ReconstructAddresses(logger *log.Helper, host string, extensions map[string]string) Address {
	var endpoints []Endpoint
	for key, value := range extensions {
		m := clusterPortPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		protoName := strings.ToLower(m[1])
		proto, ok := ProtocolByName(protoName)
		if !ok {
			logger.Errorf("unknown protocol %q in extension key %q, dropping", protoName, key)
			continue
		}
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			logger.Errorf("invalid port %q in extension key %q, dropping: %v", value, key, err)
			continue
		}
		endpoints = append(endpoints, Endpoint{Port: uint16(port), Protocol: proto})
	}
	return Address{Host: host, Endpoints: endpoints}
}
