// Package discovery implements the lanloc protocol roles.
//
// Three roles plug into a dispatch.Dispatcher:
//
//   - Locator broadcasts a discovery request to every interface's broadcast
//     address and fills the session registry with the validated responses
//     that arrive within the collection window.
//   - Provider answers requests with one self-description per advertised
//     service, sent unicast to the requester. It also accepts control
//     messages on its regular port to add services or to quit.
//   - Display accepts short text messages on the display port and replies
//     "202 Accepted" or "406 Not Acceptable".
//
// # Locate Round
//
//  1. Send one request per enumerated interface (a failing interface is
//     logged and skipped)
//  2. Collect responses until the window expires, MaxReplies entries are
//     held, or a signal arrives
//  3. Drop malformed responses and responses for other services
//  4. Return the registry, possibly empty
//
// # Usage Example
//
//	cc := dispatch.NewControlContext()
//	cc.Interfaces, _ = netif.Enumerate(netif.DefaultMaxInterfaces)
//	reg, err := discovery.Locate(ctx, cc, "myhost")
//	if err != nil {
//	    return err
//	}
//	defer reg.Destroy()
//	for _, e := range reg.List() {
//	    fmt.Println(e)
//	}
//
// # mDNS
//
// Providers may also register their services as "_lanloc._udp" over mDNS
// and locators may browse for them, for networks that filter directed
// broadcast. Browsed entries never replace broadcast results.
//
// # Network Requirements
//
// - UDP broadcast must be allowed on the local segment
// - Firewall must allow the broadcast, regular, client and display ports
// - Discovery does not cross routers
package discovery
