package form

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Attribution holds the campaign parameters of the page that hosted the form.
type Attribution struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// CaptureAttribution reads utm_* parameters from the referring URL. Malformed
// URLs yield an empty Attribution.
func CaptureAttribution(referrer string) Attribution {
	if referrer == "" {
		return Attribution{}
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return Attribution{}
	}
	q := u.Query()
	return Attribution{
		Source:   strings.TrimSpace(q.Get("utm_source")),
		Medium:   strings.TrimSpace(q.Get("utm_medium")),
		Campaign: strings.TrimSpace(q.Get("utm_campaign")),
		Term:     strings.TrimSpace(q.Get("utm_term")),
		Content:  strings.TrimSpace(q.Get("utm_content")),
	}
}

// IsZero reports whether no campaign parameter was captured.
func (a Attribution) IsZero() bool {
	return a == Attribution{}
}

// Payload is the body posted to the form relay.
type Payload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Service string `json:"service,omitempty"`
	Message string `json:"message"`

	Attribution

	// AccessKey identifies the site to hosted relays that require one.
	AccessKey string `json:"access_key,omitempty"`

	// Honeypot is the concealed field value. It is forwarded as-is under
	// HoneypotField; the relay drops any submission where it is non-empty.
	Honeypot      string `json:"-"`
	HoneypotField string `json:"-"`
}

// payloadKeys are the JSON keys owned by Payload fields.
var payloadKeys = map[string]bool{
	"name":         true,
	"email":        true,
	"service":      true,
	"message":      true,
	"access_key":   true,
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
}

// IsPayloadKey reports whether key is already used by a payload field and so
// cannot name the honeypot. JSON decoding matches keys case-insensitively, so
// neither does this.
func IsPayloadKey(key string) bool {
	return payloadKeys[strings.ToLower(strings.TrimSpace(key))]
}

// MarshalJSON encodes the payload and adds the honeypot under its configured key.
func (p Payload) MarshalJSON() ([]byte, error) {
	type plain Payload
	body, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}

	key := p.HoneypotField
	if key == "" {
		return body, nil
	}
	if IsPayloadKey(key) {
		return nil, fmt.Errorf("form: honeypot field %q collides with a payload field", key)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields[key] = p.Honeypot
	return json.Marshal(fields)
}

// IsSpam reports whether the honeypot was filled in.
func (p Payload) IsSpam() bool {
	return strings.TrimSpace(p.Honeypot) != ""
}

// DecodePayload parses a relay request body, reading the honeypot from honeypotField.
func DecodePayload(data []byte, honeypotField string) (Payload, error) {
	type plain Payload
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, err
	}

	out := Payload(p)
	out.HoneypotField = honeypotField
	if honeypotField == "" {
		return out, nil
	}
	if IsPayloadKey(honeypotField) {
		return Payload{}, fmt.Errorf("form: honeypot field %q collides with a payload field", honeypotField)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Payload{}, err
	}
	if v, ok := fields[honeypotField]; ok {
		switch hv := v.(type) {
		case string:
			out.Honeypot = hv
		case bool:
			if hv {
				out.Honeypot = "true"
			}
		case nil:
		default:
			out.Honeypot = "filled"
		}
	}
	return out, nil
}
