// Package app assembles the bridge: redis-backed ledger and queue, the
// Banano node and token contract clients, and the operation pipelines.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wBanano/wban-backend/internal/metrics"
	"github.com/wBanano/wban-backend/pkg/banano"
	"github.com/wBanano/wban-backend/pkg/bsc"
	"github.com/wBanano/wban-backend/pkg/claim"
	"github.com/wBanano/wban-backend/pkg/config"
	"github.com/wBanano/wban-backend/pkg/ledger"
	"github.com/wBanano/wban-backend/pkg/notify"
	"github.com/wBanano/wban-backend/pkg/queue"
	"github.com/wBanano/wban-backend/pkg/rebalancer"
	"github.com/wBanano/wban-backend/pkg/scanner"
	"github.com/wBanano/wban-backend/pkg/store"
	"github.com/wBanano/wban-backend/pkg/swap"
	"github.com/wBanano/wban-backend/pkg/withdrawal"
)

// Queue job names beyond the four ledger operations
const (
	JobScan              = "bc-scan"
	JobPendingWithdrawal = "pending-withdrawal"
)

// App owns the bridge's moving parts
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store       *store.Store
	ledger      *ledger.Service
	queue       *queue.Queue
	worker      *queue.Worker
	scheduler   *queue.Scheduler
	claims      *claim.Engine
	blacklist   claim.Blacklist
	swaps       *swap.Orchestrator
	withdrawals *withdrawal.Processor
	scanner     *scanner.Scanner
	rebalancer  *rebalancer.Rebalancer
	node        banano.Client
	chain       bsc.Client
	sink        notify.Sink

	server *http.Server

	// pocketMu serializes deposit pocketing between the websocket trigger
	// and the cron poll
	pocketMu sync.Mutex
}

// New builds the full object graph from configuration
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	s, err := store.NewStore(ctx, store.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	node := banano.NewNodeClient(banano.Options{
		RPCURL:         cfg.Banano.RPCURL,
		WSURL:          cfg.Banano.WSUrl,
		WalletID:       cfg.Banano.WalletID,
		DepositAccount: cfg.Banano.DepositsWallet,
	}, logger.Named("banano"))

	chain, err := bsc.NewEthClient(ctx, bsc.Options{
		RPCURL:     cfg.Blockchain.RPCURL,
		Contract:   cfg.Blockchain.WBANContract,
		PrivateKey: cfg.Blockchain.PrivateKey,
		ChainID:    cfg.Blockchain.ChainID,
		GasLimit:   cfg.Blockchain.GasLimit,
		Timeout:    cfg.Blockchain.RequestTimeout,
	}, logger.Named("bsc"))
	if err != nil {
		return nil, err
	}

	gaslessThreshold, err := decimal.NewFromString(cfg.Swaps.GaslessThreshold)
	if err != nil {
		return nil, fmt.Errorf("malformed swaps.gasless_threshold: %w", err)
	}
	hotMinimum, err := decimal.NewFromString(cfg.Rebalancing.HotWalletMinimum)
	if err != nil {
		return nil, fmt.Errorf("malformed rebalancing.hot_wallet_minimum: %w", err)
	}

	a := build(cfg, logger, s, node, chain, gaslessThreshold, hotMinimum)
	return a, nil
}

// build wires the graph from already-constructed edges, so tests can slot
// in fakes for the two chains.
func build(
	cfg *config.Config,
	logger *zap.Logger,
	s *store.Store,
	node banano.Client,
	chain bsc.Client,
	gaslessThreshold, hotMinimum decimal.Decimal,
) *App {
	storage := ledger.NewRedisStorage(s, logger.Named("store"))
	ledgerSvc := ledger.NewService(storage, logger.Named("ledger"))
	q := queue.NewQueue(s, logger.Named("queue"))
	worker := queue.NewWorker(q, queue.WorkerConfig{
		Concurrency: cfg.Queue.Concurrency,
		Attempts:    cfg.Queue.Attempts,
		Backoff:     cfg.Queue.Backoff,
		JobTimeout:  cfg.Queue.JobTimeout,
	}, logger.Named("worker"))

	blacklist := claim.NewStaticBlacklist(cfg.Banano.Blacklist)
	claims := claim.NewEngine(storage, blacklist, logger.Named("claim"))
	swaps := swap.NewOrchestrator(ledgerSvc, claims, chain, swap.Config{
		Mode:             cfg.Swaps.Mode,
		GaslessEnabled:   cfg.Swaps.GaslessEnabled,
		GaslessThreshold: gaslessThreshold,
	}, logger.Named("swap"))
	withdrawals := withdrawal.NewProcessor(ledgerSvc, claims, node, withdrawal.Config{
		MaxAttempts: cfg.Withdrawals.MaxAttempts,
		RetryDelay:  cfg.Withdrawals.RetryDelay,
		HotWallet:   cfg.Banano.DepositsWallet,
	}, logger.Named("withdrawal"))

	a := &App{
		cfg:         cfg,
		logger:      logger,
		store:       s,
		ledger:      ledgerSvc,
		queue:       q,
		worker:      worker,
		scheduler:   queue.NewScheduler(q, logger.Named("scheduler")),
		claims:      claims,
		blacklist:   blacklist,
		swaps:       swaps,
		withdrawals: withdrawals,
		rebalancer: rebalancer.New(node, rebalancer.Config{
			HotWalletMinimum: hotMinimum,
			ColdRatio:        cfg.Rebalancing.ColdRatio,
			HotWallet:        cfg.Banano.DepositsWallet,
			ColdWallet:       cfg.Banano.ColdWallet,
		}, logger.Named("rebalancer")),
		node:  node,
		chain: chain,
		sink: notify.Multi{
			notify.NewLogSink(logger.Named("events")),
			notify.NewRedisSink(s, logger.Named("events")),
		},
	}
	a.scanner = scanner.NewScanner(ledgerSvc, chain, a.enqueueBurn, scanner.Config{
		StartFromBlock: cfg.Blockchain.StartFromBlock,
		ChunkSize:      cfg.Scanner.ChunkSize,
	}, logger.Named("scanner"))

	a.registerHandlers()
	a.registerListeners()
	return a
}

// Run starts every component and blocks until the context is cancelled
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting bridge",
		zap.String("network", a.cfg.Blockchain.NetworkName),
		zap.Int64("chain_id", a.cfg.Blockchain.ChainID),
		zap.String("contract", a.cfg.Blockchain.WBANContract))
	if err := a.scheduler.Repeat(a.cfg.Blockchain.ScanJobSchedule, JobScan, struct{}{}); err != nil {
		return fmt.Errorf("failed to schedule chain scan: %w", err)
	}
	err := a.scheduler.RepeatFunc(a.cfg.Banano.PendingPollSchedule, func() {
		a.pocketDeposits(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule deposit poll: %w", err)
	}
	a.scheduler.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.worker.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.depositLoop(ctx)
	}()

	a.server = a.newServer()
	go func() {
		a.logger.Info("Serving health and metrics", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutting down")
	a.scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	wg.Wait()
	return a.store.Close()
}

func (a *App) newServer() *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Client().Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: router,
	}
}

// depositLoop keeps a confirmation subscription open and triggers a pocket
// pass whenever the network reports a deposit.
func (a *App) depositLoop(ctx context.Context) {
	for ctx.Err() == nil {
		deposits, err := a.node.Subscribe(ctx)
		if err != nil {
			a.logger.Warn("Deposit subscription failed, retrying", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}
		for range deposits {
			a.pocketDeposits(ctx)
		}
	}
}

// pocketDeposits receives every pending block on the deposit account and
// enqueues one deposit job per pocketed send.
func (a *App) pocketDeposits(ctx context.Context) {
	a.pocketMu.Lock()
	defer a.pocketMu.Unlock()

	deposits, err := a.node.ReceivePending(ctx)
	if err != nil {
		a.logger.Error("Failed to pocket pending deposits", zap.Error(err))
	}
	for _, deposit := range deposits {
		id := fmt.Sprintf("%s-%s-%s", ledger.OpDeposit, deposit.From, deposit.Hash)
		_, err := a.queue.Enqueue(ctx, ledger.OpDeposit, id, depositPayload{
			From:      deposit.From,
			Amount:    deposit.Amount.String(),
			Hash:      deposit.Hash,
			Timestamp: deposit.Timestamp,
		})
		if err != nil {
			a.logger.Error("Failed to enqueue deposit",
				zap.String("hash", deposit.Hash),
				zap.Error(err))
		}
	}
}

// enqueueBurn is the scanner's sink: every burn becomes a swap job
func (a *App) enqueueBurn(ctx context.Context, event bsc.BurnEvent) error {
	id := fmt.Sprintf("%s-%s-%s", ledger.OpSwapToBAN, event.From.Hex(), event.TxHash.Hex())
	_, err := a.queue.Enqueue(ctx, ledger.OpSwapToBAN, id, burnPayload{
		BlockchainWallet: event.From.Hex(),
		BanWallet:        event.BanWallet,
		Amount:           event.Amount.String(),
		Hash:             event.TxHash.Hex(),
		Block:            event.Block,
		Timestamp:        event.Timestamp,
	})
	return err
}

// EnqueueSwap schedules a user-initiated BAN to wBAN swap
func (a *App) EnqueueSwap(ctx context.Context, req swap.Request) error {
	id := fmt.Sprintf("%s-%s-%d", ledger.OpSwapToWBAN, req.BanWallet, req.Timestamp.UnixMilli())
	_, err := a.queue.Enqueue(ctx, ledger.OpSwapToWBAN, id, req)
	return err
}

// EnqueueWithdrawal schedules a user-initiated withdrawal
func (a *App) EnqueueWithdrawal(ctx context.Context, req withdrawal.Request) error {
	id := fmt.Sprintf("%s-%s-%d", ledger.OpWithdrawal, req.BanWallet, req.Timestamp.UnixMilli())
	_, err := a.queue.Enqueue(ctx, ledger.OpWithdrawal, id, req)
	return err
}

// RequestClaim validates and stores a wallet claim
func (a *App) RequestClaim(ctx context.Context, banWallet, blockchainWallet, signature string) (claim.Result, error) {
	result, err := a.claims.Request(ctx, banWallet, blockchainWallet, signature)
	if err == nil {
		metrics.ClaimsTotal.WithLabelValues(result.String()).Inc()
	}
	return result, err
}

func (a *App) registerListeners() {
	a.worker.OnCompleted(func(job queue.Job, result string) {
		metrics.JobsTotal.WithLabelValues(job.Name, "completed").Inc()
		a.sink.Publish(context.Background(), notify.Event{
			Kind:    job.Name,
			Wallet:  walletOf(job),
			Outcome: "completed",
			Detail:  result,
		})
	})
	a.worker.OnFailed(func(job queue.Job, err error) {
		metrics.JobsTotal.WithLabelValues(job.Name, "failed").Inc()
		a.sink.Publish(context.Background(), notify.Event{
			Kind:    job.Name,
			Wallet:  walletOf(job),
			Outcome: "failed",
			Detail:  err.Error(),
		})
	})
}
