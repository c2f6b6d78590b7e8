// Package mqtt is the backend's broker session.
//
// Devices publish state and listen for commands on topics under one
// namespace (default "iot"):
//
//	<ns>/device/<id>/status
//	<ns>/device/<id>/command
//	<ns>/device/<id>/value/<name>
//
// The backend subscribes to every status and value topic to keep the
// status snapshot current and publishes commands issued through the REST
// API. Its own availability is kept on the retained topic <ns>/system/status,
// with a will message covering crashes and lost links.
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Devices.Namespace)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllDeviceStatus(), 1, tracker.HandleMessage)
//	...
//	err = client.Publish(client.Topics().DeviceCommand("kitchen_light"), []byte("on"), 1, false)
package mqtt
