// Package remote speaks the spreadsheet-backed ticket store protocol on
// top of the failover client: sheet reads via ?sheet=, writes as a JSON
// action envelope.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"leakdesk/internal/failover"
	"leakdesk/internal/models"
	"leakdesk/internal/sheet"
)

const (
	ActionAdd    = "add"
	ActionUpdate = "update"

	SheetTickets = "Ticket"
	SheetUsers   = "Users"
)

// Mutation is the write body. EmailType is omitted when the mutation
// should not notify anyone.
type Mutation struct {
	Action    string           `json:"action"`
	Data      models.Ticket    `json:"data"`
	EmailType models.EmailType `json:"emailType,omitempty"`
}

// Ack is the store's answer to a write.
type Ack struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	ID       string `json:"id,omitempty"`
	Endpoint string `json:"-"`
}

type Client struct {
	fo  *failover.Client
	log zerolog.Logger
}

func New(fo *failover.Client, log zerolog.Logger) *Client {
	return &Client{fo: fo, log: log.With().Str("component", "remote").Logger()}
}

func (c *Client) Tickets(ctx context.Context) ([]models.Ticket, error) {
	resp, err := c.fo.Do(ctx, failover.Request{Query: "?sheet=" + SheetTickets})
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", SheetTickets, err)
	}
	tickets, err := sheet.Tickets(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet from %s: %w", SheetTickets, resp.Endpoint, err)
	}
	return tickets, nil
}

func (c *Client) Accounts(ctx context.Context) ([]models.Account, error) {
	resp, err := c.fo.Do(ctx, failover.Request{Query: "?sheet=" + SheetUsers})
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", SheetUsers, err)
	}
	accounts, err := sheet.Accounts(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet from %s: %w", SheetUsers, resp.Endpoint, err)
	}
	return accounts, nil
}

// Submit persists one mutation. Error envelopes declared as JSON are
// already failover attempts, so any answer that reaches here counts as
// accepted; Ack.Status carries whatever the body said.
func (c *Client) Submit(ctx context.Context, m Mutation) (Ack, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return Ack{}, fmt.Errorf("encode %s mutation: %w", m.Action, err)
	}
	resp, err := c.fo.Do(ctx, failover.Request{Body: body, ContentType: "application/json"})
	if err != nil {
		return Ack{}, fmt.Errorf("%s %s: %w", m.Action, m.Data.ID, err)
	}
	ack := Ack{Status: "success"}
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		c.log.Debug().Err(err).Str("endpoint", resp.Endpoint).Str("action", m.Action).
			Msg("write acknowledged without a JSON envelope")
		ack = Ack{Status: "success"}
	} else if !strings.EqualFold(ack.Status, "success") {
		c.log.Warn().Str("endpoint", resp.Endpoint).Str("action", m.Action).Str("status", ack.Status).
			Str("message", ack.Message).Msg("unexpected write status outside a JSON response")
	}
	ack.Endpoint = resp.Endpoint
	return ack, nil
}
