package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

// maxStakePages caps pagination per account
const maxStakePages = 20

// Live reads from Kiln and Etherscan
type Live struct {
	kiln      *fetch.KilnClient
	etherscan *fetch.EtherscanClient
}

// NewLive creates the live source; etherscan may be nil
func NewLive(kiln *fetch.KilnClient, etherscan *fetch.EtherscanClient) *Live {
	return &Live{kiln: kiln, etherscan: etherscan}
}

func (l *Live) Origin() types.Origin { return types.OriginLive }

func (l *Live) Accounts(ctx context.Context) ([]model.Account, error) {
	return l.kiln.ListAccounts(ctx)
}

// Stakes walks every page of an account's stakes
func (l *Live) Stakes(ctx context.Context, accountID string, pageSize int) ([]model.Stake, error) {
	var all []model.Stake
	for page := 1; page <= maxStakePages; page++ {
		res, err := l.kiln.ListStakes(ctx, fetch.StakesQuery{AccountIDs: []string{accountID}, PageSize: pageSize, Page: page})
		if err != nil {
			return nil, err
		}
		for i := range res.Stakes {
			if res.Stakes[i].AccountID == "" {
				res.Stakes[i].AccountID = accountID
			}
		}
		all = append(all, res.Stakes...)
		if !res.Pagination.HasNext() || len(res.Stakes) == 0 {
			break
		}
	}
	return all, nil
}

func (l *Live) Rewards(ctx context.Context, accountID string, start, end time.Time) ([]model.RewardRecord, error) {
	return l.kiln.ListRewards(ctx, accountID, start, end)
}

func (l *Live) ValidatorStakes(ctx context.Context, limit int) ([]model.Stake, error) {
	page, err := l.kiln.ListStakes(ctx, fetch.StakesQuery{PageSize: limit, Page: 1})
	if err != nil {
		return nil, err
	}
	return page.Stakes, nil
}

func (l *Live) ValidatorStake(ctx context.Context, id string) (model.Stake, error) {
	page, err := l.kiln.ListStakes(ctx, fetch.StakesQuery{Validators: []string{id}, PageSize: 1})
	if err != nil {
		return model.Stake{}, notFound(err)
	}
	if len(page.Stakes) == 0 {
		return model.Stake{}, fmt.Errorf("validator %s: %w", id, ErrNotFound)
	}
	return page.Stakes[0], nil
}

func (l *Live) NetworkStats(ctx context.Context, network types.Network) (model.NetworkStats, error) {
	return l.kiln.NetworkStats(ctx, network.KilnSlug())
}

func (l *Live) OrganizationPortfolio(ctx context.Context, orgID string) (model.Portfolio, error) {
	p, err := l.kiln.OrganizationPortfolio(ctx, orgID)
	return p, notFound(err)
}

func (l *Live) AddressBalance(ctx context.Context, address string) (model.WeiAmount, error) {
	if l.etherscan == nil {
		return model.WeiAmount{}, ErrUnsupported
	}
	return l.etherscan.Balance(ctx, address)
}

// LatestBlock is only available for Ethereum
func (l *Live) LatestBlock(ctx context.Context, network types.Network) (fetch.Block, error) {
	if l.etherscan == nil || network != types.NetworkEthereum {
		return fetch.Block{}, ErrUnsupported
	}
	n, err := l.etherscan.LatestBlockNumber(ctx)
	if err != nil {
		return fetch.Block{}, err
	}
	return l.etherscan.BlockWithTransactions(ctx, n)
}

// notFound maps an upstream 404 onto ErrNotFound
func notFound(err error) error {
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
