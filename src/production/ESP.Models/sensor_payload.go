package espmodels

// SensorPayload is the inbound reading body for POST /sensor and the MQTT
// ingestion topic. The pointer fields keep decoding strict: a missing field
// or a JSON null decodes to nil, and a string/bool/object value fails the
// unmarshal outright, so numeric-looking strings are never coerced.
type SensorPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// Validate checks that both fields were present in the decoded payload
func (p *SensorPayload) Validate() error {
	if p.Temperature == nil {
		return &ValidationError{Field: "temperature", Reason: "must be a number"}
	}
	if p.Humidity == nil {
		return &ValidationError{Field: "humidity", Reason: "must be a number"}
	}
	return nil
}
