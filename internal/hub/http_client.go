package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

// rpcEnvelope is a JSON envelope shape (raw params/result plus an error
// string). call does not use it: every Hub call posts a CBOR-encoded
// request body and decodes a CBOR response body
// (original_source/hub/src/event.rs uses ciborium; fxamacker/cbor/v2 is
// our binary-compatible Go equivalent).
type rpcEnvelope struct {
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

// HTTPClient is the production Client: an HTTP+CBOR transport to the Hub
// with retryablehttp-managed retries and exponential backoff, following
// the same client-construction idiom as
// src/chainadapter/rpc (teacher) generalized from JSON-RPC framing to
// the Hub's CBOR-over-HTTP framing.
type HTTPClient struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewHTTPClient builds a production Hub client. maxRetries bounds
// retryablehttp's exponential backoff; callers under spec.md's
// finalization-time budgets should keep this small (customs/route loops
// re-poll on their own ticker regardless of whether a call ultimately
// failed).
func NewHTTPClient(baseURL string, maxRetries int) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Debug().Str("url", req.URL.String()).Int("attempt", attempt).Msg("hub: retrying request")
		}
	}
	return &HTTPClient{baseURL: baseURL, http: rc}
}

func (c *HTTPClient) call(ctx context.Context, method string, reqBody any, out any) error {
	buf, err := cbor.Marshal(reqBody)
	if err != nil {
		return &CallError{Method: method, Reason: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(buf))
	if err != nil {
		return &CallError{Method: method, Reason: err}
	}
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := c.http.Do(req)
	if err != nil {
		return &CallError{Method: method, Reason: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &CallError{Method: method, Reason: fmt.Errorf("hub returned status %d", resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	dec := cbor.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return &CallError{Method: method, Reason: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

type queryDirectivesReq struct {
	ChainID string `cbor:"1,keyasint"`
	Offset  uint64 `cbor:"2,keyasint"`
	Limit   int    `cbor:"3,keyasint"`
}

func (c *HTTPClient) QueryDirectives(ctx context.Context, chainID string, offset uint64, limit int) ([]domain.Directive, error) {
	var out []domain.Directive
	err := c.call(ctx, "query_directives", queryDirectivesReq{ChainID: chainID, Offset: offset, Limit: limit}, &out)
	return out, err
}

type queryTicketsReq struct {
	ChainID string `cbor:"1,keyasint"`
	Offset  uint64 `cbor:"2,keyasint"`
	Limit   int    `cbor:"3,keyasint"`
}

func (c *HTTPClient) QueryTickets(ctx context.Context, chainID string, offset uint64, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := c.call(ctx, "query_tickets", queryTicketsReq{ChainID: chainID, Offset: offset, Limit: limit}, &out)
	return out, err
}

func (c *HTTPClient) SendTicket(ctx context.Context, t domain.Ticket) error {
	var ack struct{}
	return c.call(ctx, "send_ticket", t, &ack)
}

type updateTicketStatusReq struct {
	TicketID string `cbor:"1,keyasint"`
	Status   string `cbor:"2,keyasint"`
}

func (c *HTTPClient) UpdateTicketStatus(ctx context.Context, ticketID string, status string) error {
	var ack struct{}
	return c.call(ctx, "update_ticket_status", updateTicketStatusReq{TicketID: ticketID, Status: status}, &ack)
}

type pullRunesBalanceReq struct {
	Txid   string `cbor:"1,keyasint"`
	RuneID string `cbor:"2,keyasint"`
}

func (c *HTTPClient) PullRunesOracleBalance(ctx context.Context, txid, runeID string) (domain.RunesBalance, error) {
	var out domain.RunesBalance
	err := c.call(ctx, "pull_runes_oracle_balance", pullRunesBalanceReq{Txid: txid, RuneID: runeID}, &out)
	return out, err
}

// DefaultPollInterval is a sensible default cadence for
// QueryDirectives/QueryTickets loops; schedulers may override it.
const DefaultPollInterval = 5 * time.Second
