// Package sensor defines the value sources observed by the telemetry
// publisher.
//
// A Sensor exposes its Metadata and delivers value-change notifications to
// subscribers. Subscribing returns a Subscription that must be cancelled to
// release the callback. NaN is a valid notification and means "no reading".
//
// Implementations:
//   - Static: values pushed by the caller
//   - Simulated: a bounded random walk
//   - File: a numeric file such as a sysfs thermal zone, scaled
//
// Sources are sampled by a Sampler from the host loop, so notifications are
// delivered on the same goroutine that ticks the connection.
package sensor
