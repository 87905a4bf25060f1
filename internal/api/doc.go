// # Routes
//
//	GET /api/v1/health                   component health, 503 when any check fails
//	GET /api/v1/system                   runtime, pool and registry figures
//	GET /api/v1/session                  the current vdSM session, if any
//	GET /api/v1/devices                  all vdSDs, optionally ?vdc=<dsuid>
//	GET /api/v1/devices/{dsuid}          the property tree of any entity, optionally ?names=a,b
//	GET /api/v1/devices/{dsuid}/history  recorded value changes, ?limit=n
//	GET /api/v1/audit                    session, announce and removal log, ?kind= ?dsuid= ?limit= ?offset=
//	GET /api/v1/events                   websocket event stream
//	GET /metrics                         Prometheus exposition
//
// # Event stream
//
// Websocket clients subscribe to event kinds ("session", "push", "value",
// "notification", ...) or to "*" for all of them:
//
//	{"type": "subscribe", "id": "1", "payload": {"channels": ["session", "push"]}}
//
// The API is read-only. The vdSM remains the only writer of device settings.
package api
