package bsc

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// wbanABI covers the contract surface the bridge uses
const wbanABI = `[
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"SwapToBan","inputs":[{"name":"from","type":"address","indexed":true},{"name":"banAddress","type":"string","indexed":false},{"name":"amount","type":"uint256","indexed":false}]}
]`

// EthClient implements Client over an ethclient connection
type EthClient struct {
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	signer   *signer
	wallet   common.Address
	chainID  *big.Int
	gasLimit uint64
	logger   *zap.Logger
}

type Options struct {
	RPCURL     string
	Contract   string
	PrivateKey string
	ChainID    int64
	GasLimit   uint64
	Timeout    time.Duration
}

func NewEthClient(ctx context.Context, opts Options, logger *zap.Logger) (*EthClient, error) {
	eth, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(wbanABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge wallet key: %w", err)
	}
	chainID := big.NewInt(opts.ChainID)
	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit = 300_000
	}
	return &EthClient{
		eth:      eth,
		abi:      parsed,
		contract: common.HexToAddress(opts.Contract),
		signer:   &signer{key: key, chainID: chainID},
		wallet:   crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: gasLimit,
		logger:   logger,
	}, nil
}

// Wallet returns the bridge wallet address
func (c *EthClient) Wallet() common.Address {
	return c.wallet
}

func (c *EthClient) Close() {
	c.eth.Close()
}

func (c *EthClient) CreateMintReceipt(wallet common.Address, amount *big.Int) (MintReceipt, error) {
	receipt, err := c.signer.createMintReceipt(wallet, amount)
	if err != nil {
		return MintReceipt{}, err
	}
	c.logger.Info("Forged mint receipt",
		zap.String("wallet", wallet.Hex()),
		zap.String("amount", amount.String()),
		zap.String("uuid", receipt.UUID))
	return receipt, nil
}

func (c *EthClient) MintTo(ctx context.Context, wallet common.Address, amount *big.Int) (string, error) {
	data, err := c.abi.Pack("mint", wallet, amount)
	if err != nil {
		return "", fmt.Errorf("failed to encode mint call: %w", err)
	}
	return c.submit(ctx, c.contract, big.NewInt(0), data)
}

func (c *EthClient) SendNative(ctx context.Context, wallet common.Address, amount *big.Int) (string, error) {
	return c.submit(ctx, wallet, amount, nil)
}

func (c *EthClient) submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (string, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.wallet)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.signer.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	hash := signed.Hash().Hex()
	c.logger.Info("Submitted transaction",
		zap.String("to", to.Hex()),
		zap.String("hash", hash))
	return hash, nil
}

func (c *EthClient) LatestBlock(ctx context.Context) (int64, error) {
	block, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block number: %w", err)
	}
	return int64(block), nil
}

func (c *EthClient) NativeBalance(ctx context.Context, wallet common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, wallet, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch native balance: %w", err)
	}
	return balance, nil
}

func (c *EthClient) BurnEvents(ctx context.Context, fromBlock, toBlock int64) ([]BurnEvent, error) {
	event := c.abi.Events["SwapToBan"]
	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query burn events: %w", err)
	}

	timestamps := make(map[uint64]time.Time)
	events := make([]BurnEvent, 0, len(logs))
	for _, entry := range logs {
		values, err := event.Inputs.NonIndexed().Unpack(entry.Data)
		if err != nil {
			c.logger.Warn("Skipping undecodable burn event",
				zap.String("tx", entry.TxHash.Hex()),
				zap.Error(err))
			continue
		}
		banWallet, _ := values[0].(string)
		amount, _ := values[1].(*big.Int)
		if amount == nil {
			continue
		}

		ts, ok := timestamps[entry.BlockNumber]
		if !ok {
			header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(entry.BlockNumber))
			if err != nil {
				return nil, fmt.Errorf("failed to fetch header for block %d: %w", entry.BlockNumber, err)
			}
			ts = time.Unix(int64(header.Time), 0)
			timestamps[entry.BlockNumber] = ts
		}

		events = append(events, BurnEvent{
			From:      common.HexToAddress(entry.Topics[1].Hex()),
			BanWallet: strings.ToLower(banWallet),
			Amount:    amount,
			TxHash:    entry.TxHash,
			Block:     int64(entry.BlockNumber),
			Timestamp: ts,
		})
	}
	return events, nil
}
