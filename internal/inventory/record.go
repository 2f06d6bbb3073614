package inventory

import (
	"encoding/json"
	"strconv"
)

// NotAvailable is substituted for any field that could not be collected
const NotAvailable = "N/A"

// Record is one hardware inventory snapshot. Every field is always populated,
// either with a real value or with a sentinel. JSON keys are the ones the
// inventory API stores.
type Record struct {
	System       string `json:"sistema"`
	Architecture string `json:"arquitetura"`
	Hostname     string `json:"nome_pc"`
	IP           string `json:"ip"`
	MAC          string `json:"mac"`
	Processor    string `json:"processador"`
	GPU          string `json:"gpu"`
	Cores        Count  `json:"nucleos"`
	Threads      Count  `json:"threads"`
	RAM          string `json:"ram"`
	DiskTotal    string `json:"disco_total"`
	DiskType     string `json:"tipo_disco_principal"`
}

// Fields returns the record as a flat key/value mapping, ready to be merged
// with the user's selection
func (r Record) Fields() map[string]any {
	return map[string]any{
		"sistema":              r.System,
		"arquitetura":          r.Architecture,
		"nome_pc":              r.Hostname,
		"ip":                   r.IP,
		"mac":                  r.MAC,
		"processador":          r.Processor,
		"gpu":                  r.GPU,
		"nucleos":              r.Cores,
		"threads":              r.Threads,
		"ram":                  r.RAM,
		"disco_total":          r.DiskTotal,
		"tipo_disco_principal": r.DiskType,
	}
}

// Count is a core or thread count that may be unavailable. It encodes as a
// JSON number, or as the NotAvailable string.
type Count struct {
	n     int
	valid bool
}

// CountOf returns an available count
func CountOf(n int) Count {
	return Count{n: n, valid: true}
}

// Value returns the count and whether it is available
func (c Count) Value() (int, bool) {
	return c.n, c.valid
}

func (c Count) String() string {
	if !c.valid {
		return NotAvailable
	}
	return strconv.Itoa(c.n)
}

// MarshalJSON implements json.Marshaler
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(c.n)
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Count) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = CountOf(n)
		return nil
	}
	*c = Count{}
	return nil
}
