package relay

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the relay webhook endpoint on the given router.
// All methods are routed to the dispatcher so non-POST probes get 200.
func RegisterRoutes(r chi.Router, d *Dispatcher) {
	r.HandleFunc("/slack/events", d.HandleEvent)
}
