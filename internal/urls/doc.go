// Package urls parses WebSocket endpoint URLs.
//
// Parsing is intentionally literal: the scheme must be exactly "ws://" or
// "wss://", the host:port segment ends at the first '/', and a port is split
// off at the last ':'. Default ports are 80 for ws and 443 for wss.
//
// Any parse failure is a wserr Config error. A client configured with an
// unparseable URL never attempts a connection.
//
// # Known Limitation
//
// Bracketed IPv6 literals are not recognized. "ws://[::1]:8080/" splits at the
// last colon and yields host "[::1]", which the resolver will not accept.
//
// # Usage Example
//
//	ep, err := urls.Parse("wss://telemetry.example.com/ingest")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(ep.Host, ep.Port, ep.Path) // telemetry.example.com 443 /ingest
package urls
