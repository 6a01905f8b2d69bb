package nacos

import (
	"strconv"
	"strings"
	"time"

	"github.com/fitframework/nacos-registry-adapter/pkg/env"
)

// Recognized configuration option keys (spec.md §6).
const (
	OptServerAddresses     = "registry-center.server.addresses"
	OptUsername             = "nacos.username"
	OptPassword             = "nacos.password"
	OptAccessKey            = "nacos.accessKey"
	OptSecretKey            = "nacos.secretKey"
	OptNamespace            = "nacos.namespace"
	OptIsEphemeral          = "nacos.isEphemeral"
	OptHeartBeatInterval    = "nacos.heartBeatInterval"
	OptHeartBeatTimeout     = "nacos.heartBeatTimeout"
	OptWeight               = "nacos.weight"
	OptAsyncTimeout         = "nacos.async.timeout"
)

// Defaults from the Configuration surface table, spec.md §6.
const (
	DefaultNamespace         = ""
	DefaultLocalNamespace    = "local"
	DefaultIsEphemeral       = true
	DefaultHeartBeatInterval = 5000
	DefaultHeartBeatTimeout  = 15000
	DefaultWeight            = 1.0
	DefaultAsyncTimeoutSec   = 10
	DefaultReadinessTimeout  = 10 * time.Second
	DefaultCallbackPoolSize  = 10
)

// ServerAddr is one Nacos server address.
type ServerAddr struct {
	IP   string
	Port uint64
}

// Config holds the adapter's full configuration surface (spec.md §6).
type Config struct {
	ServerAddrs       []ServerAddr
	Username          string
	Password          string
	AccessKey         string
	SecretKey         string
	NamespaceID       string
	IsEphemeral       bool
	HeartBeatInterval int
	HeartBeatTimeout  int
	Weight            float64
	AsyncTimeout      time.Duration
	CallbackPoolSize  int
}

// ErrConfig marks a fatal configuration error (spec.md §7): missing server
// address or an unparseable value.
type ErrConfig struct {
	Key string
	Msg string
}

func (e *ErrConfig) Error() string {
	return "nacos: configuration error for " + e.Key + ": " + e.Msg
}

// Load builds a Config from a generic option map as the framework would
// pass it (spec.md §6's Configuration surface table), falling back to
// process environment variables of the same name for anything missing —
// the same file-or-env fallback style the teacher's cmd/server uses for
// everything else.
func Load(opts map[string]string) (*Config, error) {
	get := func(key string) string {
		if v, ok := opts[key]; ok && v != "" {
			return v
		}
		return env.Get(key)
	}

	addrsRaw := get(OptServerAddresses)
	if addrsRaw == "" {
		return nil, &ErrConfig{Key: OptServerAddresses, Msg: "required, none provided"}
	}
	addrs := parseServerAddrs(addrsRaw)

	namespace := get(OptNamespace)
	if namespace == "" {
		namespace = DefaultLocalNamespace
	}

	cfg := &Config{
		ServerAddrs:       addrs,
		Username:          get(OptUsername),
		Password:          get(OptPassword),
		AccessKey:         get(OptAccessKey),
		SecretKey:         get(OptSecretKey),
		NamespaceID:       namespace,
		IsEphemeral:       parseBoolOrDefault(get(OptIsEphemeral), DefaultIsEphemeral),
		HeartBeatInterval: parseIntOrDefault(get(OptHeartBeatInterval), DefaultHeartBeatInterval),
		HeartBeatTimeout:  parseIntOrDefault(get(OptHeartBeatTimeout), DefaultHeartBeatTimeout),
		Weight:            parseFloatOrDefault(get(OptWeight), DefaultWeight),
		CallbackPoolSize:  DefaultCallbackPoolSize,
	}

	asyncTimeoutSec := parseIntOrDefault(get(OptAsyncTimeout), DefaultAsyncTimeoutSec)
	cfg.AsyncTimeout = time.Duration(asyncTimeoutSec) * time.Second

	return cfg, nil
}

// parseServerAddrs parses a comma-separated list of server addresses.
// Format: "ip1:port1,ip2:port2" or "ip1,ip2" (default port 8848). Only the
// first element is required by spec.md §6, but every element is kept so
// the naming client can fail over across the cluster.
func parseServerAddrs(addrs string) []ServerAddr {
	parts := strings.Split(addrs, ",")
	result := make([]ServerAddr, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		result = append(result, parseServerAddr(part))
	}
	return result
}

// parseServerAddr parses a single server address in "ip:port" format.
func parseServerAddr(addr string) ServerAddr {
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		ip := addr[:idx]
		portStr := addr[idx+1:]
		if port, err := strconv.ParseUint(portStr, 10, 64); err == nil {
			return ServerAddr{IP: ip, Port: port}
		}
	}
	return ServerAddr{IP: addr, Port: 8848}
}

func parseBoolOrDefault(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func parseIntOrDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func parseFloatOrDefault(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
