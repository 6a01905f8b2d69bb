// Package conf holds the bootstrap configuration schema this service scans
// its file/Apollo config source into. The teacher generates this struct
// from a conf.proto via protoc; that toolchain step is out of scope here,
// so it is a plain struct with the json tags kratos's config.Scan already
// understands for any source (file YAML/JSON, Apollo properties).
package conf

import "strconv"

// Bootstrap is the root of the service's configuration.
type Bootstrap struct {
	Server   *Server   `json:"server"`
	Registry *Registry `json:"registry"`
}

// Server holds the transport listener configuration.
type Server struct {
	Grpc *Grpc `json:"grpc"`
	HTTP *HTTP `json:"http"`
}

// Grpc configures the gRPC listener.
type Grpc struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

// HTTP configures the HTTP listener.
type HTTP struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

// Registry mirrors the Configuration surface this adapter recognizes
// (registry-center.server.addresses and friends); fields left empty fall
// back to environment variables of the same name in nacos.Load.
type Registry struct {
	ServerAddresses   string  `json:"serverAddresses"`
	Username          string  `json:"username"`
	Password          string  `json:"password"`
	AccessKey         string  `json:"accessKey"`
	SecretKey         string  `json:"secretKey"`
	Namespace         string  `json:"namespace"`
	IsEphemeral       *bool   `json:"isEphemeral"`
	HeartBeatInterval int     `json:"heartBeatInterval"`
	HeartBeatTimeout  int     `json:"heartBeatTimeout"`
	Weight            float64 `json:"weight"`
	AsyncTimeoutSec   int     `json:"asyncTimeoutSeconds"`
	WorkerID          string  `json:"workerId"`
	CallbackPoolSize  int     `json:"callbackPoolSize"`
}

// ToOpts flattens Registry into the option map nacos.Load expects,
// omitting fields left at their zero value so nacos.Load's own
// environment-variable fallback still applies. WorkerID and
// CallbackPoolSize are not part of the option map: nacos.Load has no option
// for them and always sets Config.CallbackPoolSize to its default.
func (r *Registry) ToOpts() map[string]string {
	opts := make(map[string]string)
	if r == nil {
		return opts
	}
	set := func(key, value string) {
		if value != "" {
			opts[key] = value
		}
	}
	set("registry-center.server.addresses", r.ServerAddresses)
	set("nacos.username", r.Username)
	set("nacos.password", r.Password)
	set("nacos.accessKey", r.AccessKey)
	set("nacos.secretKey", r.SecretKey)
	set("nacos.namespace", r.Namespace)
	if r.IsEphemeral != nil {
		if *r.IsEphemeral {
			opts["nacos.isEphemeral"] = "true"
		} else {
			opts["nacos.isEphemeral"] = "false"
		}
	}
	if r.HeartBeatInterval > 0 {
		set("nacos.heartBeatInterval", strconv.Itoa(r.HeartBeatInterval))
	}
	if r.HeartBeatTimeout > 0 {
		set("nacos.heartBeatTimeout", strconv.Itoa(r.HeartBeatTimeout))
	}
	if r.Weight > 0 {
		set("nacos.weight", strconv.FormatFloat(r.Weight, 'f', -1, 64))
	}
	if r.AsyncTimeoutSec > 0 {
		set("nacos.async.timeout", strconv.Itoa(r.AsyncTimeoutSec))
	}
	return opts
}
