// Package server implements the relaychat TCP relay.
//
// A Server accepts connections and runs one session per connection. Each
// session performs the nickname handshake, then feeds every message it reads
// to the Hub, which renders it and fans it out to the other sessions held in
// the Registry. The same session protocol is served over WebSocket frames by
// the optional HTTP gateway.
package server
