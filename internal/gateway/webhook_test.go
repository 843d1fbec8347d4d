package gateway

import "testing"

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"charge.success","data":{"reference":"sr_1"}}`)
	signature := SignWebhookBody(body, secret)

	if !VerifyWebhookSignature(body, signature, secret) {
		t.Fatal("expected a correctly signed body to verify")
	}
	if !VerifyWebhookSignature(body, "sha256="+signature, secret) {
		t.Fatal("expected the sha256= prefixed form to verify")
	}
}

func TestVerifyWebhookSignatureRejectsTamperedBody(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"charge.success","data":{"reference":"sr_1","amount":1000}}`)
	signature := SignWebhookBody(body, secret)

	tampered := []byte(`{"event":"charge.success","data":{"reference":"sr_1","amount":9000}}`)
	if VerifyWebhookSignature(tampered, signature, secret) {
		t.Fatal("a tampered body must not verify")
	}
}

func TestVerifyWebhookSignatureRejectsBadInput(t *testing.T) {
	body := []byte(`{}`)
	if VerifyWebhookSignature(body, SignWebhookBody(body, "right"), "wrong") {
		t.Fatal("a signature under a different secret must not verify")
	}
	if VerifyWebhookSignature(body, "", "secret") {
		t.Fatal("an empty signature header must not verify")
	}
	if VerifyWebhookSignature(body, "not-hex!!", "secret") {
		t.Fatal("a non-hex signature must not verify")
	}
	if VerifyWebhookSignature(body, SignWebhookBody(body, ""), "") {
		t.Fatal("an empty secret must never verify")
	}
}
