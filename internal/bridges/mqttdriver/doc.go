// Package mqttdriver lets hardware drivers living in other processes speak
// to the vDC host over MQTT.
//
// Inbound, drivers report hardware state as JSON {"value": ...} on
//
//	{prefix}/driver/{dsuid}/channel/{index}   channel value read back
//	{prefix}/driver/{dsuid}/sensor/{index}    sensor reading
//	{prefix}/driver/{dsuid}/binary/{index}    binary input state (bool or 0/1)
//	{prefix}/driver/{dsuid}/button/{index}    button click type
//
// and the bridge applies them through the host, which records history,
// publishes events and pushes to the vdSM when configured.
//
// Outbound, the bridge is the device.Driver of every vdSD: applied channel
// values go to {prefix}/driver/{dsuid}/output, identify requests and
// control values to their own topics, and generic method calls are
// correlated by request ID with the answer on
// {prefix}/driver/{dsuid}/response/{request_id}. Host events are mirrored
// to {prefix}/events/{kind}.
//
// A HealthReporter publishes the retained bridge status to
// {prefix}/system/bridge.
package mqttdriver
