package activitypub

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"code.superseriousbusiness.org/httpsig"
)

// Digest computes the Digest header value for a request body.
func Digest(body []byte) string {
	hash := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])
}

// SignRequest signs an outgoing HTTP request with the given private
// key. The Digest, Date and Host headers are derived from the request
// before signing, so callers only set Content-Type and the body.
// keyID format: "https://example.com/actor#main-key"
func SignRequest(req *http.Request, body []byte, privateKey *rsa.PrivateKey, keyID string) error {
	req.Header.Set("Digest", Digest(body))
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	req.Header.Set("Host", req.URL.Host)

	// Create signer with required headers
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		[]string{"(request-target)", "host", "date", "digest", "content-type"},
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	// Sign the request
	return signer.SignRequest(privateKey, keyID, req, nil)
}
