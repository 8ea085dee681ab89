// Package discovery finds telemetry collectors on the local network over
// mDNS and lets a collector advertise itself.
//
// Collectors advertise the "_wstelemetry._tcp" service type. Two TXT
// records shape the endpoint URL:
//   - path=/ingest  request path (default "/")
//   - tls=1         use wss:// instead of ws://
//
// # Usage Example
//
//	url, err := discovery.Discover(ctx, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.Configure(url, 5000, 30000)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Collectors must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
