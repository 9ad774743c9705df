package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/otel"
)

// EtherscanClient implements a client for the Etherscan account, stats and proxy modules
type EtherscanClient struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewEtherscanClient creates a new Etherscan API client
func NewEtherscanClient(baseURL, apiKey string, timeout time.Duration) *EtherscanClient {
	if apiKey == "" {
		logrus.Warn("ETHERSCAN_API_KEY not set, Etherscan requests will be rate limited")
	}
	return &EtherscanClient{
		client:  &fasthttp.Client{Name: "staking-analytics-api"},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logrus.WithField("component", "etherscan"),
	}
}

// etherscanEnvelope covers both the REST ({status,message,result}) and the
// JSON-RPC proxy ({result,error}) response shapes.
type etherscanEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *etherscanRPCError  `json:"error"`
}

type etherscanRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Balance returns the latest balance of address in wei
func (c *EtherscanClient) Balance(ctx context.Context, address string) (model.WeiAmount, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", address)
	params.Set("tag", "latest")

	var raw string
	if err := c.call(ctx, "etherscan.Balance", params, &raw); err != nil {
		return model.WeiAmount{}, err
	}
	w := model.NewWei(raw)
	if w.Malformed() {
		return model.WeiAmount{}, fmt.Errorf("unexpected balance value %q", raw)
	}
	return w, nil
}

// ETHPrice returns the last ETH/USD price
func (c *EtherscanClient) ETHPrice(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("module", "stats")
	params.Set("action", "ethprice")

	var result struct {
		ETHUSD string `json:"ethusd"`
	}
	if err := c.call(ctx, "etherscan.ETHPrice", params, &result); err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(result.ETHUSD, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("unexpected ethusd value %q", result.ETHUSD)
	}
	return price, nil
}

// LatestBlockNumber returns the current head block number
func (c *EtherscanClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	var hex string
	if err := c.call(ctx, "etherscan.BlockNumber", params, &hex); err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("decoding block number %q: %w", hex, err)
	}
	return n, nil
}

// RPCTransaction is a transaction as returned by eth_getBlockByNumber
type RPCTransaction struct {
	Hash  string  `json:"hash"`
	From  string  `json:"from"`
	To    *string `json:"to"`
	Value string  `json:"value"`
}

// Block is the subset of eth_getBlockByNumber the explorer needs
type Block struct {
	Number       uint64
	Timestamp    time.Time
	Transactions []RPCTransaction
}

// BlockWithTransactions fetches a block including full transaction objects
func (c *EtherscanClient) BlockWithTransactions(ctx context.Context, number uint64) (Block, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getBlockByNumber")
	params.Set("tag", hexutil.EncodeUint64(number))
	params.Set("boolean", "true")

	var raw struct {
		Number       string           `json:"number"`
		Timestamp    string           `json:"timestamp"`
		Transactions []RPCTransaction `json:"transactions"`
	}
	if err := c.call(ctx, "etherscan.GetBlock", params, &raw); err != nil {
		return Block{}, err
	}

	block := Block{Number: number, Transactions: raw.Transactions}
	if n, err := hexutil.DecodeUint64(raw.Number); err == nil {
		block.Number = n
	}
	if ts, err := hexutil.DecodeUint64(raw.Timestamp); err == nil {
		block.Timestamp = time.Unix(int64(ts), 0).UTC()
	}
	return block, nil
}

// call performs a GET against the Etherscan API and decodes "result" into out
func (c *EtherscanClient) call(ctx context.Context, op string, params url.Values, out any) error {
	ctx, span := otel.Tracer().Start(ctx, op)
	defer span.End()

	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	requestURL := c.baseURL + "?" + params.Encode()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		otel.RecordError(ctx, err)
		return fmt.Errorf("error fetching %s from Etherscan: %w", params.Get("action"), err)
	}

	body := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		statusErr := newStatusError("Etherscan", resp.StatusCode(), body)
		otel.RecordError(ctx, statusErr)
		return statusErr
	}

	var env etherscanEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		otel.RecordError(ctx, err)
		return fmt.Errorf("error decoding Etherscan response: %w", err)
	}
	if env.Error != nil {
		err := fmt.Errorf("etherscan rpc error %d: %s", env.Error.Code, env.Error.Message)
		otel.RecordError(ctx, err)
		return err
	}
	// REST modules report failures as status "0" with the reason in result
	if env.Status == "0" {
		err := fmt.Errorf("etherscan error: %s: %s", env.Message, strings.Trim(string(env.Result), `"`))
		otel.RecordError(ctx, err)
		return err
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("etherscan returned an empty result for %s", params.Get("action"))
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		otel.RecordError(ctx, err)
		return fmt.Errorf("error decoding Etherscan result: %w", err)
	}
	c.logger.WithField("action", params.Get("action")).Debug("Etherscan call succeeded")
	return nil
}
