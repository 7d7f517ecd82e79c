// Package discovery centralizes in-network addressing conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceShell is the static application shell origin served upstream of the cache worker.
	ServiceShell = "shell"
	// ServiceTasks is the remote task data gRPC service identity.
	ServiceTasks = "tasks"
	// ServiceCacheWorker is the offline cache worker HTTP identity.
	ServiceCacheWorker = "cacheworker"
	// ServiceReminders is the reminder session HTTP identity.
	ServiceReminders = "reminders"
)

var grpcPorts = map[string]int{
	ServiceTasks:       8095,
	ServiceCacheWorker: 8093,
	ServiceReminders:   8096,
}

var httpPorts = map[string]int{
	ServiceShell:       8080,
	ServiceCacheWorker: 8092,
	ServiceReminders:   8094,
}

// DefaultGRPCAddr returns the canonical in-network gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), grpcPorts)
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), httpPorts)
}

// DefaultPort returns the canonical port for a service and transport ("grpc" or "http").
func DefaultPort(service, transport string) int {
	ports := httpPorts
	if strings.EqualFold(strings.TrimSpace(transport), "grpc") {
		ports = grpcPorts
	}
	return ports[strings.TrimSpace(service)]
}

// OrDefaultGRPCAddr returns value when set, otherwise the service convention.
func OrDefaultGRPCAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultGRPCAddr(service)
}

// OrDefaultHTTPBaseURL returns value when set, otherwise http://<service-host:port>.
func OrDefaultHTTPBaseURL(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	addr := DefaultHTTPAddr(service)
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
