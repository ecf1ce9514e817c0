package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/profile-launchpad/internal/models"
	"github.com/rxtech-lab/profile-launchpad/internal/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFeeJobConcurrency bounds how many launches are processed at once
const DefaultFeeJobConcurrency = 4

// LaunchCollectionResult is the per-launch outcome of one job run.
type LaunchCollectionResult struct {
	LaunchID      string  `json:"launch_id"`
	TokenAddress  string  `json:"token_address"`
	Success       bool    `json:"success"`
	Amount        string  `json:"amount"`
	TxHash        *string `json:"tx_hash,omitempty"`
	Resynced      bool    `json:"resynced,omitempty"`
	Forwarded     bool    `json:"forwarded"`
	ForwardTxHash *string `json:"forward_tx_hash,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// CollectionSummary reports one job run.
type CollectionSummary struct {
	Collected int                      `json:"collected"`
	Forwarded int                      `json:"forwarded"`
	Resynced  int                      `json:"resynced"`
	Total     int                      `json:"total"`
	Failed    int                      `json:"failed"`
	Error     string                   `json:"error,omitempty"`
	Results   []LaunchCollectionResult `json:"results"`
}

type FeeCollectionJob interface {
	// Run collects fees for every deployed launch. Per-launch failures are
	// recorded in the summary; Run itself never fails.
	Run(ctx context.Context) *CollectionSummary
}

type feeCollectionJob struct {
	launches    LaunchService
	collections FeeCollectionService
	adapter     protocol.Adapter
	concurrency int
	logger      *zap.Logger
}

func NewFeeCollectionJob(launches LaunchService, collections FeeCollectionService, adapter protocol.Adapter, concurrency int, logger *zap.Logger) FeeCollectionJob {
	if concurrency < 1 {
		concurrency = DefaultFeeJobConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &feeCollectionJob{
		launches:    launches,
		collections: collections,
		adapter:     adapter,
		concurrency: concurrency,
		logger:      logger.Named("fee_job"),
	}
}

func (j *feeCollectionJob) Run(ctx context.Context) *CollectionSummary {
	summary := &CollectionSummary{Results: []LaunchCollectionResult{}}

	launches, err := j.launches.ListDeployedWithToken()
	if err != nil {
		j.logger.Error("failed to list deployed launches", zap.Error(err))
		summary.Error = err.Error()
		return summary
	}
	summary.Total = len(launches)

	results := make([]LaunchCollectionResult, len(launches))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(j.concurrency)
	for i := range launches {
		i := i
		g.Go(func() error {
			result := j.processLaunch(ctx, &launches[i])
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Success && r.TxHash != nil && r.Amount != "0" {
			summary.Collected++
		}
		if r.Forwarded {
			summary.Forwarded++
		}
		if r.Resynced {
			summary.Resynced++
		}
		if !r.Success {
			summary.Failed++
		}
	}
	summary.Results = results

	j.logger.Info("fee collection finished",
		zap.Int("total", summary.Total),
		zap.Int("collected", summary.Collected),
		zap.Int("forwarded", summary.Forwarded),
		zap.Int("resynced", summary.Resynced),
		zap.Int("failed", summary.Failed))
	return summary
}

// processLaunch isolates one launch: panics and errors end up in the result.
func (j *feeCollectionJob) processLaunch(ctx context.Context, launch *models.Launch) (result LaunchCollectionResult) {
	result = LaunchCollectionResult{
		LaunchID:     launch.ID,
		TokenAddress: *launch.TokenAddress,
		Amount:       "0",
	}
	logger := j.logger.With(zap.String("launch_id", launch.ID), zap.String("token", result.TokenAddress))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("fee collection panicked", zap.Any("panic", r))
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	fees, err := j.adapter.CollectFees(ctx, common.HexToAddress(*launch.TokenAddress))
	if err != nil {
		logger.Error("fee collection failed", zap.Error(err))
		result.Error = err.Error()
		return result
	}
	if fees.Collected() {
		txHash := fees.TxHash.Hex()
		result.Amount = fees.Amount.String()
		result.TxHash = &txHash
		if _, err := j.collections.RecordCollection(launch.ID, result.TokenAddress, fees.Amount, txHash); err != nil {
			logger.Error("failed to record fee collection", zap.String("tx_hash", txHash), zap.Error(err))
			result.Error = err.Error()
			return result
		}
	}

	router := j.adapter.Router()
	if router != nil && launch.FeeRouterAddress != nil {
		routerAddress := common.HexToAddress(*launch.FeeRouterAddress)

		if launch.Claimed && !launch.RouterRecipientSynced && launch.ClaimerWalletAddress != nil {
			if err := j.resyncRouter(ctx, router, launch, routerAddress); err != nil {
				logger.Error("router resync failed", zap.Error(err))
				result.Error = err.Error()
				return result
			}
			result.Resynced = true
		}

		forward, err := router.Forward(ctx, routerAddress)
		if err != nil {
			logger.Error("fee forward failed", zap.String("router", routerAddress.Hex()), zap.Error(err))
			result.Error = err.Error()
			return result
		}
		if forward != nil {
			txHash := forward.TxHash.Hex()
			result.Forwarded = true
			result.ForwardTxHash = &txHash
		}
	}

	result.Success = true
	return result
}

func (j *feeCollectionJob) resyncRouter(ctx context.Context, router protocol.FeeRouter, launch *models.Launch, routerAddress common.Address) error {
	tx, err := router.SetRecipient(ctx, routerAddress, common.HexToAddress(*launch.ClaimerWalletAddress))
	if err != nil {
		return fmt.Errorf("failed to resync router recipient: %w", err)
	}
	txHash := tx.TxHash.Hex()
	if err := j.launches.SetClaimTxHashes(launch.ID, &txHash, launch.VaultClaimTxHash); err != nil {
		return fmt.Errorf("failed to record router resync: %w", err)
	}
	return j.launches.MarkRouterRecipientSynced(launch.ID)
}
