package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// Remote is a Signer backed by an external threshold-signing service
// reachable over HTTP — the production counterpart of Local. It never
// holds key material; every call is a network round trip, matching the
// teacher's KeySourceType.HardwareWallet posture of "signing happens
// somewhere else" (src/chainadapter/keysource.go).
type Remote struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewRemote builds a Remote signer against baseURL.
func NewRemote(baseURL string) *Remote {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	return &Remote{baseURL: baseURL, http: rc}
}

func (r *Remote) Type() KeySourceType { return KeySourceRemote }

type publicKeyRequest struct {
	Path []byte `json:"path"`
}

type publicKeyResponse struct {
	PublicKey []byte `json:"public_key"`
}

func (r *Remote) PublicKey(ctx context.Context, path []byte) ([]byte, error) {
	var out publicKeyResponse
	if err := r.post(ctx, "/public_key", publicKeyRequest{Path: path}, &out); err != nil {
		return nil, err
	}
	return out.PublicKey, nil
}

type signRequest struct {
	Digest []byte `json:"digest"`
	Path   []byte `json:"path"`
}

type signResponse struct {
	Signature []byte `json:"signature"`
}

func (r *Remote) Sign(ctx context.Context, digest []byte, path []byte) ([]byte, error) {
	var out signResponse
	if err := r.post(ctx, "/sign", signRequest{Digest: digest, Path: path}, &out); err != nil {
		return nil, err
	}
	return out.Signature, nil
}

func (r *Remote) SignSchnorr(ctx context.Context, digest []byte, path []byte) ([]byte, error) {
	var out signResponse
	if err := r.post(ctx, "/sign_schnorr", signRequest{Digest: digest, Path: path}, &out); err != nil {
		return nil, err
	}
	return out.Signature, nil
}

func (r *Remote) post(ctx context.Context, route string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("signer: encoding request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+route, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("signer: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("signer: calling %s: %w", route, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("signer: %s returned status %d", route, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Signer = (*Remote)(nil)
