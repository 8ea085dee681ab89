// Package telemetry builds the JSON messages a device sends and decides
// which sensor readings are worth sending.
//
// # Messages
//
// Every message is a flat JSON object with a "type" discriminator:
//
//	{"type":"connection","device_id":"boiler-1","timestamp":1700000000}
//	{"type":"sensor_data","device_id":"boiler-1","sensor_name":"Flow",
//	 "sensor_id":"flow_temp","value":42.5,"unit":"°C","timestamp":1700000000}
//	{"type":"heartbeat","device_id":"boiler-1","timestamp":1700000000,
//	 "uptime":123456,"free_heap":81920}
//
// Timestamps are Unix seconds when the wall clock is synchronised and the
// monotonic millisecond counter otherwise.
//
// # Change Suppression
//
// A reading is sent only when it is not NaN and either nothing has been
// reported yet or it differs from the last reported value by more than
// ChangeThreshold. The last reported value advances only after a successful
// send, so a failed send never hides the next differing reading.
//
// Readings that arrive while the connection is not open are dropped, or
// held in a bounded queue when one is configured.
package telemetry
