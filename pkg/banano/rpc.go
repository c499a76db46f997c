package banano

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
)

// NodeClient implements Client against a Banano node RPC endpoint
type NodeClient struct {
	rpcURL         string
	wsURL          string
	walletID       string
	depositAccount string
	http           *http.Client
	logger         *zap.Logger

	// sendMu serializes sends so the node never builds two blocks on the
	// same frontier.
	sendMu sync.Mutex
}

type Options struct {
	RPCURL         string
	WSURL          string
	WalletID       string
	DepositAccount string
	Timeout        time.Duration
}

func NewNodeClient(opts Options, logger *zap.Logger) *NodeClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &NodeClient{
		rpcURL:         opts.RPCURL,
		wsURL:          opts.WSURL,
		walletID:       opts.WalletID,
		depositAccount: strings.ToLower(opts.DepositAccount),
		http:           &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

// call performs one node RPC action. The node reports failures in-band via
// an "error" field rather than HTTP status codes.
func (c *NodeClient) call(ctx context.Context, request any, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode node request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build node request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("node request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Error string `json:"error"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode node response: %w", err)
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("node error: %s", envelope.Error)
	}
	if response != nil {
		if err := json.Unmarshal(raw, response); err != nil {
			return fmt.Errorf("failed to decode node response: %w", err)
		}
	}
	return nil
}

func (c *NodeClient) Balance(ctx context.Context, account string) (*big.Int, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	err := c.call(ctx, map[string]string{
		"action":  "account_balance",
		"account": account,
	}, &resp)
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q for account %s", resp.Balance, account)
	}
	return balance, nil
}

func (c *NodeClient) Send(ctx context.Context, destination string, amount *big.Int) (string, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	balance, err := c.Balance(ctx, c.depositAccount)
	if err != nil {
		return "", err
	}
	if balance.Cmp(amount) < 0 {
		return "", apperrors.InsufficientHotWalletError(nil,
			fmt.Sprintf("hot wallet holds %s raw, need %s raw", balance, amount))
	}

	var resp struct {
		Block string `json:"block"`
	}
	// the id field makes the send idempotent node-side
	err = c.call(ctx, map[string]string{
		"action":      "send",
		"wallet":      c.walletID,
		"source":      c.depositAccount,
		"destination": destination,
		"amount":      amount.String(),
		"id":          uuid.NewString(),
	}, &resp)
	if err != nil {
		return "", err
	}
	c.logger.Info("Sent BAN",
		zap.String("destination", destination),
		zap.String("amount", amount.String()),
		zap.String("hash", resp.Block))
	return resp.Block, nil
}

func (c *NodeClient) ReceivePending(ctx context.Context) ([]Deposit, error) {
	var resp struct {
		Blocks map[string]struct {
			Amount string `json:"amount"`
			Source string `json:"source"`
		} `json:"blocks"`
	}
	err := c.call(ctx, map[string]any{
		"action":  "receivable",
		"account": c.depositAccount,
		"count":   100,
		"source":  "true",
	}, &resp)
	if err != nil {
		return nil, err
	}

	deposits := make([]Deposit, 0, len(resp.Blocks))
	for hash, block := range resp.Blocks {
		amount, ok := new(big.Int).SetString(block.Amount, 10)
		if !ok {
			c.logger.Warn("Skipping receivable with malformed amount",
				zap.String("hash", hash),
				zap.String("amount", block.Amount))
			continue
		}
		var receiveResp struct {
			Block string `json:"block"`
		}
		err := c.call(ctx, map[string]string{
			"action":  "receive",
			"wallet":  c.walletID,
			"account": c.depositAccount,
			"block":   hash,
		}, &receiveResp)
		if err != nil {
			return deposits, fmt.Errorf("failed to pocket block %s: %w", hash, err)
		}
		deposits = append(deposits, Deposit{
			From:      strings.ToLower(block.Source),
			Amount:    amount,
			Hash:      hash,
			Timestamp: time.Now(),
		})
	}
	return deposits, nil
}
