// Package explorer samples and tags the transactions of the latest block.
package explorer

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/staking-analytics-api/internal/addressbook"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Explorer reads the latest block through the data-source selector
type Explorer struct {
	sources *source.Selector
	log     logrus.FieldLogger
}

// New creates an Explorer
func New(sources *source.Selector, log logrus.FieldLogger) *Explorer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Explorer{sources: sources, log: log}
}

// Response is the payload of /api/explorer/transactions
type Response struct {
	Network         types.Network       `json:"network"`
	BlockNumber     uint64              `json:"blockNumber"`
	Transactions    []model.Transaction `json:"transactions"`
	Count           int                 `json:"count"`
	TagDistribution map[string]int      `json:"tagDistribution"`
	Source          types.Origin        `json:"source"`
	GeneratedAt     time.Time           `json:"generatedAt"`
}

// LatestTransactions returns up to limit tagged transactions of the latest
// block. Only Ethereum has a live source; other networks are synthetic.
func (e *Explorer) LatestTransactions(ctx context.Context, network types.Network, limit int) (Response, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	block, origin, err := source.Run(ctx, e.sources, "latest_block", func(ds source.DataSource) (fetch.Block, error) {
		return ds.LatestBlock(ctx, network)
	})
	if err != nil {
		return Response{}, err
	}

	txs := block.Transactions
	if len(txs) > limit {
		txs = txs[:limit]
	}

	resp := Response{
		Network:         network,
		BlockNumber:     block.Number,
		Transactions:    make([]model.Transaction, 0, len(txs)),
		TagDistribution: map[string]int{},
		Source:          origin,
		GeneratedAt:     time.Now().UTC(),
	}
	for _, tx := range txs {
		t := e.transaction(tx, block, network)
		resp.Transactions = append(resp.Transactions, t)
		resp.TagDistribution[t.Tag]++
	}
	resp.Count = len(resp.Transactions)
	return resp, nil
}

func (e *Explorer) transaction(tx fetch.RPCTransaction, block fetch.Block, network types.Network) model.Transaction {
	var to string
	if tx.To != nil {
		to = *tx.To
	}
	return model.Transaction{
		Hash:        tx.Hash,
		From:        tx.From,
		To:          to,
		ValueETH:    e.valueETH(tx),
		BlockNumber: block.Number,
		Network:     string(network),
		Tag:         addressbook.TagFor(to),
		Timestamp:   block.Timestamp,
	}
}

// valueETH decodes a hex wei quantity; an undecodable value counts as zero
func (e *Explorer) valueETH(tx fetch.RPCTransaction) float64 {
	if tx.Value == "" || tx.Value == "0x0" {
		return 0
	}
	wei, err := hexutil.DecodeBig(tx.Value)
	if err != nil {
		e.log.WithField("hash", tx.Hash).WithError(err).Debug("Undecodable transaction value")
		return 0
	}
	return decimal.NewFromBigInt(wei, -18).InexactFloat64()
}
