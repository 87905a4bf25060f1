// Package session implements one vDC API session with a vdSM.
//
// A Session starts in StateAwaitingHello. A hello with a supported API
// version moves it to StateActive and triggers the handler's SessionActive
// hook, which is where the host announces its vDCs and devices. Bye, a
// host-level vanish, a transport failure or cancellation move it to
// StateTerminated, which is final.
//
// Inbound traffic is split three ways:
//
//   - pings are answered inline by the read loop
//   - requests go through a bounded queue to a worker pool
//   - notifications go through a single ordered worker
//
// Outbound requests (Request) are correlated by message ID; responses may
// arrive in any order. A request that times out is forgotten and its late
// response is dropped.
package session
