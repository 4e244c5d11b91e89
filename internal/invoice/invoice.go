// Package invoice encodes subscription requests as shareable deep links, so a
// receiver can hand a spender everything needed to pre-fill a subscription.
package invoice

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"gitlab.com/distributed_lab/logan/v3/errors"
)

// FragmentKey is the URL fragment parameter the payload travels under.
const FragmentKey = "invoice"

// Invoice is the subscription pre-fill payload. Amounts and timestamps stay
// strings: the payload is display data until the spender confirms it.
type Invoice struct {
	Receiver string `json:"receiver"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Period   string `json:"period"`
	StartsAt string `json:"startsAt"`
	Memo     string `json:"memo"`
}

// Encode serializes the invoice to a standard-base64 string, the alphabet
// existing deep links in the wild are encoded with.
func (i Invoice) Encode() (string, error) {
	raw, err := json.Marshal(i)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal invoice")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a base64 payload back into an invoice. Both the standard and
// the URL-safe alphabets are accepted. Payloads that decode but do not hold a
// JSON object are rejected.
func Decode(payload string) (Invoice, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(payload); err != nil {
			return Invoice{}, errors.Wrap(err, "failed to decode invoice payload")
		}
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	tok, err := dec.Token()
	if err != nil {
		return Invoice{}, errors.Wrap(err, "invoice payload is not valid json")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Invoice{}, errors.New("invoice payload is not an object")
	}

	var i Invoice
	if err = json.Unmarshal(raw, &i); err != nil {
		return Invoice{}, errors.Wrap(err, "failed to unmarshal invoice")
	}
	return i, nil
}

// FromFragment extracts and decodes the invoice from a URL fragment of the
// form "invoice=<base64>". The payload is cut out textually: query unescaping
// would corrupt the "+" bytes of standard base64. A fragment without the key
// is not an error; the second return value reports presence.
func FromFragment(fragment string) (Invoice, bool, error) {
	fragment = strings.TrimPrefix(fragment, "#")
	for _, part := range strings.Split(fragment, "&") {
		if !strings.HasPrefix(part, FragmentKey+"=") {
			continue
		}

		payload := part[len(FragmentKey)+1:]
		if payload == "" {
			return Invoice{}, false, nil
		}
		i, err := Decode(payload)
		if err != nil {
			return Invoice{}, true, err
		}
		return i, true, nil
	}

	return Invoice{}, false, nil
}
