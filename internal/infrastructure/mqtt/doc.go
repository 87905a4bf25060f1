// Package mqtt connects the vDC host daemon to an MQTT broker.
//
// The broker carries two flows: the driver bridge, through which external
// device drivers report input values and receive output values, and the
// host event feed. Topic names are built by Topics under a configurable
// prefix (default "vdc"):
//
//	vdc/driver/{dsuid}/{channel|sensor|binary|button}/{index}  driver -> host
//	vdc/driver/{dsuid}/output                                  host -> driver
//	vdc/driver/{dsuid}/identify                                host -> driver
//	vdc/driver/{dsuid}/control/{name}                          host -> driver
//	vdc/driver/{dsuid}/method/{name}                           host -> driver
//	vdc/driver/{dsuid}/response/{request_id}                   driver -> host
//	vdc/events/{kind}                                          host events
//	vdc/system/status                                          retained status, LWT
//
// The client reconnects with backoff and restores its subscriptions. TLS
// is used when cfg.Broker.TLS is set.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllDriverInputs(), client.QoS(), handler)
package mqtt
