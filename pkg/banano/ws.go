package banano

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Subscribe opens a websocket to the node and streams confirmed sends aimed
// at the deposit account. Reconnection is the caller's concern: the channel
// closes on any stream failure and the caller resubscribes.
func (c *NodeClient) Subscribe(ctx context.Context) (<-chan Deposit, error) {
	conn, _, err := websocket.Dial(ctx, c.wsURL, nil)
	if err != nil {
		return nil, err
	}

	subscription := map[string]any{
		"action": "subscribe",
		"topic":  "confirmation",
		"options": map[string]any{
			"accounts": []string{c.depositAccount},
		},
	}
	if err := wsjson.Write(ctx, conn, subscription); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, err
	}

	deposits := make(chan Deposit)
	go func() {
		defer close(deposits)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("Deposit stream closed", zap.Error(err))
				}
				return
			}
			deposit, ok := c.parseConfirmation(data)
			if !ok {
				continue
			}
			select {
			case deposits <- deposit:
			case <-ctx.Done():
				return
			}
		}
	}()
	return deposits, nil
}

// confirmationMessage is the node's confirmation topic payload
type confirmationMessage struct {
	Topic   string `json:"topic"`
	Time    string `json:"time"`
	Message struct {
		Account string `json:"account"`
		Amount  string `json:"amount"`
		Hash    string `json:"hash"`
		Block   struct {
			Subtype       string `json:"subtype"`
			LinkAsAccount string `json:"link_as_account"`
		} `json:"block"`
	} `json:"message"`
}

// parseConfirmation keeps only send blocks whose destination is the deposit
// account. The sender is the block account, not the link.
func (c *NodeClient) parseConfirmation(data []byte) (Deposit, bool) {
	var msg confirmationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Malformed confirmation message", zap.Error(err))
		return Deposit{}, false
	}
	if msg.Topic != "confirmation" || msg.Message.Block.Subtype != "send" {
		return Deposit{}, false
	}
	if strings.ToLower(msg.Message.Block.LinkAsAccount) != c.depositAccount {
		return Deposit{}, false
	}
	amount, ok := new(big.Int).SetString(msg.Message.Amount, 10)
	if !ok {
		c.logger.Warn("Confirmation with malformed amount",
			zap.String("hash", msg.Message.Hash),
			zap.String("amount", msg.Message.Amount))
		return Deposit{}, false
	}
	ts := time.Now()
	if millis, err := strconv.ParseInt(msg.Time, 10, 64); err == nil {
		ts = time.UnixMilli(millis)
	}
	return Deposit{
		From:      strings.ToLower(msg.Message.Account),
		Amount:    amount,
		Hash:      msg.Message.Hash,
		Timestamp: ts,
	}, true
}
