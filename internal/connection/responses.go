package connection

// TypeError is the generic response type any request may receive.
const TypeError = "error"

// responseTypes maps a request type to the response types that settle it.
// Every entry also accepts TypeError.
var responseTypes = map[string][]string{
	"get_local_ski":    {"local_ski", TypeError},
	"get_remote_skis":  {"remote_skis", TypeError},
	"register_ski":     {"ski_registered", TypeError},
	"register_skis":    {"skis_registered", TypeError},
	"get_lpp":          {"lpp", TypeError},
	"get_lpc":          {"lpc", TypeError},
	"get_log_level":    {"log_level", TypeError},
	"set_log_level":    {"log_level_changed", TypeError},
	"mdns_discovery":   {"mdns_discovery", TypeError},
	"start_simulation": {"simulation_started", TypeError},
}

// ResponseTypes returns the response types accepted for requestType.
// Unknown request types only accept TypeError.
func ResponseTypes(requestType string) []string {
	types, ok := responseTypes[requestType]
	if !ok {
		return []string{TypeError}
	}
	out := make([]string, len(types))
	copy(out, types)
	return out
}

// responseSet returns ResponseTypes as a lookup set.
func responseSet(requestType string) map[string]struct{} {
	types := ResponseTypes(requestType)
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}
