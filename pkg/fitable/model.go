// Package fitable holds the domain model the registry adapter bridges to a
// Nacos-compatible registry: Fitable/Genericable identities, the
// Worker/Application/FitableMeta triple that gets published, and the
// discovery results built back out of registry instances.
package fitable

import "encoding/json"

// Protocol identifies the wire protocol an Endpoint serves.
type Protocol uint8

// Recognized protocol codes. Values match the registry's per-instance
// metadata encoding, not any particular transport library.
const (
	ProtocolRSocket      Protocol = 0
	ProtocolSocket       Protocol = 1
	ProtocolHTTP         Protocol = 2
	ProtocolGRPC         Protocol = 3
	ProtocolUC           Protocol = 10
	ProtocolShareMemory  Protocol = 11
)

// protocolNames maps the lower-cased scheme captured from a
// `cluster.<proto>.port` extension key to its Protocol code.
var protocolNames = map[string]Protocol{
	"rsocket":      ProtocolRSocket,
	"socket":       ProtocolSocket,
	"http":         ProtocolHTTP,
	"grpc":         ProtocolGRPC,
	"uc":           ProtocolUC,
	"share_memory": ProtocolShareMemory,
}

// ProtocolByName looks up a protocol by its lower-cased name, as used when
// reconstructing endpoints from Worker.Extensions.
func ProtocolByName(name string) (Protocol, bool) {
	p, ok := protocolNames[name]
	return p, ok
}

// ProtocolName returns the lower-cased scheme name for a Protocol code, the
// inverse of ProtocolByName.
func ProtocolName(p Protocol) (string, bool) {
	for name, code := range protocolNames {
		if code == p {
			return name, true
		}
	}
	return "", false
}

// Fitable is a concrete implementation of a Genericable, uniquely identified
// by four strings. It is immutable, value-typed and comparable, making it a
// valid map key.
type Fitable struct {
	GenericableID      string `json:"genericableId"`
	GenericableVersion string `json:"genericableVersion"`
	FitableID          string `json:"fitableId"`
	FitableVersion     string `json:"fitableVersion"`
}

// Genericable is an interface identity, the prefix of a Fitable.
type Genericable struct {
	GenericableID      string `json:"genericableId"`
	GenericableVersion string `json:"genericableVersion"`
}

// Genericable returns the Genericable identity this Fitable implements.
func (f Fitable) Genericable() Genericable {
	return Genericable{GenericableID: f.GenericableID, GenericableVersion: f.GenericableVersion}
}

// Endpoint is one (port, protocol) pair a Worker listens on.
type Endpoint struct {
	Port     uint16   `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// Address is one host and the ordered endpoints it serves. An address with
// N endpoints expands to N registry instances at publish time.
type Address struct {
	Host      string     `json:"host"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Worker is a single process hosting one or more Fitables, reachable at one
// or more addresses. ID is the process-unique key used to match instances
// during unregister.
type Worker struct {
	Addresses   []Address         `json:"addresses"`
	ID          string            `json:"id"`
	Environment string            `json:"environment"`
	Extensions  map[string]string `json:"extensions"`
}

// key returns a canonical representation used to compare two Workers for
// the set-dedup behavior required by invariant 4 ("extract_workers is a set
// operation"). encoding/json sorts map keys, so two Workers with identical
// content always produce identical keys regardless of build order.
func (w Worker) key() string {
	b, _ := json.Marshal(w)
	return string(b)
}

// Equal reports whether two Workers have identical decoded content.
func (w Worker) Equal(other Worker) bool {
	return w.key() == other.key()
}

// Application identifies the deploying application.
type Application struct {
	Name        string `json:"name"`
	NameVersion string `json:"nameVersion"`
}

// FitableMeta is a Fitable plus its aliases and supported serialization
// formats.
type FitableMeta struct {
	Fitable Fitable `json:"fitable"`
	Aliases []string `json:"aliases"`
	Formats []uint8  `json:"formats"`
}

// Supported serialization format codes.
const (
	FormatProtobuf uint8 = 0
	FormatJSON     uint8 = 1
)

// key returns a canonical representation for use as a map key, since
// FitableMeta itself contains slices and is not comparable with ==.
func (m FitableMeta) key() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// FitableMetaInstance is a meta plus the set of environments observed to
// host it.
type FitableMetaInstance struct {
	Meta         FitableMeta `json:"meta"`
	Environments []string    `json:"environments"`
}

// ApplicationInstance is all workers belonging to one application that
// implement a Fitable.
type ApplicationInstance struct {
	Workers     []Worker    `json:"workers"`
	Application Application `json:"application"`
	Formats     []uint8     `json:"formats"`
}

// FitableAddressInstance is the discovery result for one Fitable: the
// by-application grouping of workers offering it.
type FitableAddressInstance struct {
	Fitable              Fitable               `json:"fitable"`
	ApplicationInstances []ApplicationInstance `json:"applicationInstances"`
}
