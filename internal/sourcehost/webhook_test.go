package sourcehost

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureValid(t *testing.T) {
	body := []byte(`{"zen":"hello"}`)
	header := sign("topsecret", body)
	if !VerifySignature("topsecret", body, header) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	body := []byte(`{"zen":"hello"}`)
	header := sign("topsecret", body)
	if VerifySignature("wrongsecret", body, header) {
		t.Fatal("expected signature under wrong secret to fail")
	}
}

func TestVerifySignatureBodyTampered(t *testing.T) {
	header := sign("topsecret", []byte(`{"zen":"hello"}`))
	if VerifySignature("topsecret", []byte(`{"zen":"hellp"}`), header) {
		t.Fatal("expected signature over different body to fail")
	}
}

func TestVerifySignatureMissingPrefix(t *testing.T) {
	body := []byte(`{"zen":"hello"}`)
	mac := hmac.New(sha1.New, []byte("topsecret"))
	mac.Write(body)
	bare := hex.EncodeToString(mac.Sum(nil))
	if VerifySignature("topsecret", body, bare) {
		t.Fatal("expected signature without sha1= prefix to be rejected")
	}
}

func TestVerifySignatureMalformedHex(t *testing.T) {
	if VerifySignature("topsecret", []byte("body"), "sha1=not-hex") {
		t.Fatal("expected malformed hex to be rejected")
	}
}
