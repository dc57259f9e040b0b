package sensortable

import (
	"strings"

	"github.com/snarg/ble-sensor-gateway/internal/shadow"
)

// resetRequiringFields names the "set" command fields that force the
// sensor to reset to take effect on firmware older than major version 4,
// per spec.md §4.4's config-request ingress algorithm.
var resetRequiringFields = []string{
	"sensorName", "advertisingInterval", "advertisingDuration",
	"passkey", "activeMode", "useCodedPhy",
}

func requiresReset(cmd string, fwMajor uint8, dumpRequest bool) bool {
	if dumpRequest || fwMajor >= 4 {
		return false
	}
	for _, field := range resetRequiringFields {
		if strings.Contains(cmd, field) {
			return true
		}
	}
	return false
}

// AddConfigRequest is the config-request ingress (C4 §4.4): a decoded cloud
// delta, periodic dump, or reboot request destined for addrString's entry.
// Returns DispatchDoNotFree when the table has taken ownership of cmd by
// parking it as pending_cmd or queued_cmd — the caller (the message bus)
// must not recycle its payload in that case.
func (t *Table) AddConfigRequest(addrString, cmd string, configVersion uint32, dumpRequest, resetRequest bool) DispatchResult {
	idx := t.findByAddrString(addrString)
	if idx < 0 {
		return DispatchError
	}
	e := &t.entries[idx]

	if Flags(e.Ad.Flags).LowBattery() && !dumpRequest {
		return DispatchOK
	}

	if configVersion == uint32(e.Rsp.ConfigVersion) && !dumpRequest && !resetRequest {
		return DispatchOK
	}

	c := &Command{
		Cmd:           cmd,
		ConfigVersion: configVersion,
		DumpRequest:   dumpRequest,
		ResetRequest:  resetRequest || requiresReset(cmd, e.Rsp.FWMajor, dumpRequest),
	}

	if e.ConfigBusy || e.PendingCmd != nil {
		// A republish of the command already in flight is a duplicate, not a
		// second command — drop it silently rather than clobbering QueuedCmd,
		// per sensor_table.c's configBusyVersion check.
		if e.ConfigBusy && !dumpRequest && configVersion == e.ConfigBusyVersion {
			return DispatchOK
		}
		e.QueuedCmd = c
	} else {
		e.PendingCmd = c
	}
	return DispatchDoNotFree
}

// RetryConfigRequest returns a previously-dispatched command to the table
// for a later attempt, incrementing its attempt counter. Used when the
// Sensor Task's connection attempt fails before the command could be
// delivered.
func (t *Table) RetryConfigRequest(tableIndex int) {
	if tableIndex < 0 || tableIndex >= len(t.entries) {
		return
	}
	e := &t.entries[tableIndex]
	e.ConfigBusy = false
	if e.PendingCmd != nil {
		e.PendingCmd.Attempts++
	}
}

// AckConfigRequest marks tableIndex's pending command delivered. It promotes
// a queued command if one is waiting; otherwise, the first time a non-dump
// command completes, it synthesizes a dump request so the gateway's shadow
// comes to mirror the sensor's full configuration.
func (t *Table) AckConfigRequest(tableIndex int) {
	if tableIndex < 0 || tableIndex >= len(t.entries) {
		return
	}
	e := &t.entries[tableIndex]
	acked := e.PendingCmd
	e.ConfigBusy = false
	e.PendingCmd = nil

	if e.QueuedCmd != nil {
		e.PendingCmd = e.QueuedCmd
		e.QueuedCmd = nil
		return
	}

	if acked != nil && acked.DumpRequest {
		e.FirstDumpComplete = true
		return
	}

	if !e.FirstDumpComplete {
		e.PendingCmd = &Command{Cmd: shadow.DumpCommand, DumpRequest: true}
	}
}
