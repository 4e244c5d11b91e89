package invoice_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/web3pay/payer-svc/internal/invoice"
)

func TestInvoice_RoundTrip(t *testing.T) {
	in := invoice.Invoice{
		Receiver: "0xf245a4396e23a1fde5c95a099a079cc513d63aee",
		Token:    "0x036cbd53842c5426634e7929541ec2318f3dcf7e",
		Amount:   "1000000",
		Period:   "2592000",
		StartsAt: "1700000000",
		Memo:     "hosting",
	}

	payload, err := in.Encode()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	out, err := invoice.Decode(payload)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed the invoice:\n in: %+v\nout: %+v", in, out)
	}
}

func TestDecode_AcceptsStandardBase64(t *testing.T) {
	// "?" bytes force "/" into the standard-base64 output
	in := invoice.Invoice{
		Receiver: "0xf245a4396e23a1fde5c95a099a079cc513d63aee",
		Memo:     "????????",
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	payload := base64.StdEncoding.EncodeToString(raw)
	if !strings.ContainsAny(payload, "+/") {
		t.Fatalf("payload %q does not exercise the standard alphabet", payload)
	}

	out, err := invoice.Decode(payload)
	if err != nil {
		t.Fatalf("failed to decode standard base64: %v", err)
	}
	if out != in {
		t.Errorf("standard base64 round trip changed the invoice: %+v", out)
	}

	// the URL-safe alphabet stays accepted
	out, err = invoice.Decode(base64.URLEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("failed to decode url-safe base64: %v", err)
	}
	if out != in {
		t.Errorf("url-safe base64 round trip changed the invoice: %+v", out)
	}
}

func TestDecode_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{`"just a string"`, `[1,2,3]`, `42`, `null`} {
		payload := base64.URLEncoding.EncodeToString([]byte(raw))
		if _, err := invoice.Decode(payload); err == nil {
			t.Errorf("expected rejection of payload %s", raw)
		}
	}
}

func TestDecode_RejectsBadBase64(t *testing.T) {
	if _, err := invoice.Decode("%%%not-base64%%%"); err == nil {
		t.Error("expected rejection of malformed base64")
	}
}

func TestFromFragment(t *testing.T) {
	in := invoice.Invoice{Receiver: "0x01", Amount: "5"}
	payload, err := in.Encode()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	out, ok, err := invoice.FromFragment("#invoice=" + payload)
	if err != nil || !ok {
		t.Fatalf("expected invoice to be found: ok=%v err=%v", ok, err)
	}
	if out != in {
		t.Errorf("fragment round trip changed the invoice: %+v", out)
	}

	_, ok, err = invoice.FromFragment("#other=1")
	if err != nil || ok {
		t.Errorf("fragment without the key: ok=%v err=%v", ok, err)
	}
}

func TestFromFragment_PreservesStandardBase64(t *testing.T) {
	in := invoice.Invoice{Receiver: "0x01", Memo: "????????"}
	payload, err := in.Encode()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if !strings.ContainsAny(payload, "+/") {
		t.Fatalf("payload %q does not exercise the standard alphabet", payload)
	}

	out, ok, err := invoice.FromFragment("#invoice=" + payload)
	if err != nil || !ok {
		t.Fatalf("expected invoice to be found: ok=%v err=%v", ok, err)
	}
	if out != in {
		t.Errorf("fragment mangled the standard-base64 payload: %+v", out)
	}
}
