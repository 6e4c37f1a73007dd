package domain

// Hop describes one download made while resolving a channel.
type Hop struct {
	URL            string   `json:"url"`
	ResponseURL    string   `json:"response_url"`
	Status         string   `json:"status"`
	HTTPStatus     *int     `json:"http_status"` // nil when no response arrived
	Bytes          int      `json:"bytes"`
	BytesPerSecond *float64 `json:"bytes_per_second"`
	Text           bool     `json:"text"`
	Error          string   `json:"error,omitempty"`
}

// ProbeReport is the detailed answer for a single ad-hoc probe.
type ProbeReport struct {
	URL             string `json:"url"`
	Passed          bool   `json:"passed"`
	Reason          string `json:"reason,omitempty"`
	DereferencedURL string `json:"dereferenced_url,omitempty"`
	Hops            []Hop  `json:"hops"`
}
