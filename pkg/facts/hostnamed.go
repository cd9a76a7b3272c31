package facts

import (
	"context"
	"strings"

	dbus "github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
)

const (
	hostnamedDest = "org.freedesktop.hostname1"
	hostnamedPath = "/org/freedesktop/hostname1"
)

// hostnamedProperties maps org.freedesktop.hostname1 properties to facts.
var hostnamedProperties = map[string]string{
	"StaticHostname":            "static_hostname",
	"Chassis":                   "chassis",
	"KernelRelease":             "kernel_release",
	"OperatingSystemPrettyName": "os_pretty_name",
	"OperatingSystemCPEName":    "os_cpe_name",
}

// Hostnamed reads host metadata from systemd-hostnamed over the system bus.
type Hostnamed struct{}

func (Hostnamed) Name() string { return "hostnamed" }

func (Hostnamed) Collect(ctx context.Context) (Facts, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to system bus")
	}
	defer conn.Close()

	obj := conn.Object(hostnamedDest, dbus.ObjectPath(hostnamedPath))
	facts := Facts{}
	for prop, key := range hostnamedProperties {
		v, err := obj.GetProperty(hostnamedDest + "." + prop)
		if err != nil {
			// Older hostnamed releases lack some properties.
			continue
		}
		if s, ok := v.Value().(string); ok && strings.TrimSpace(s) != "" {
			facts[key] = s
		}
	}
	if len(facts) == 0 {
		return nil, errors.New("hostnamed reported no properties")
	}
	return facts, nil
}
