package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bitpay/bws-daemon/pkg/circuitbreaker"
	"github.com/bitpay/bws-daemon/pkg/explorer"
	"github.com/bitpay/bws-daemon/pkg/httputil"
)

const (
	defaultRequestsPerSecond = 20
	defaultRequestTimeout    = 15 * time.Second
)

type insight struct {
	apiURL         string
	cb             *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
	requestTimeout time.Duration
}

// NewService returns a new insight client as an explorer.Service interface.
// A non-positive requestTimeout falls back to the default.
func NewService(apiURL string, requestTimeout time.Duration) explorer.Service {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &insight{
		apiURL:         strings.TrimSuffix(apiURL, "/"),
		cb:             circuitbreaker.NewCircuitBreaker("insight"),
		limiter:        rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		requestTimeout: requestTimeout,
	}
}

func (i *insight) GetUtxos(
	ctx context.Context, addresses []string,
) ([]explorer.Utxo, error) {
	url := fmt.Sprintf("%s/addrs/%s/utxo", i.apiURL, strings.Join(addresses, ","))
	resp, err := i.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("retrieving utxos: %w", err)
	}

	var outs []utxo
	if err := json.Unmarshal([]byte(resp), &outs); err != nil {
		return nil, fmt.Errorf("retrieving utxos: %w", err)
	}

	utxos := make([]explorer.Utxo, 0, len(outs))
	for _, out := range outs {
		satoshis := out.Satoshis
		if satoshis == 0 && out.Amount > 0 {
			satoshis = uint64(math.Round(out.Amount * 1e8))
		}
		utxos = append(utxos, explorer.Utxo{
			TxID:          out.TxID,
			Vout:          out.Vout,
			Address:       out.Address,
			ScriptPubKey:  out.ScriptPubKey,
			Satoshis:      satoshis,
			Confirmations: out.Confirmations,
		})
	}
	return utxos, nil
}

func (i *insight) GetTransaction(
	ctx context.Context, txid string,
) (*explorer.Tx, error) {
	url := fmt.Sprintf("%s/tx/%s", i.apiURL, txid)
	status, resp, err := i.request(ctx, "GET", url, "")
	if err != nil {
		return nil, fmt.Errorf("retrieving tx: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("retrieving tx: %s", resp)
	}

	var t tx
	if err := json.Unmarshal([]byte(resp), &t); err != nil {
		return nil, fmt.Errorf("retrieving tx: %w", err)
	}

	inputTxIDs := make([]string, 0, len(t.Vin))
	for _, in := range t.Vin {
		inputTxIDs = append(inputTxIDs, in.TxID)
	}
	return &explorer.Tx{
		TxID:          t.TxID,
		Confirmations: t.Confirmations,
		InputTxIDs:    inputTxIDs,
	}, nil
}

func (i *insight) GetAddressActivity(
	ctx context.Context, addresses []string,
) (bool, error) {
	url := fmt.Sprintf(
		"%s/addrs/%s/txs?from=0&to=1", i.apiURL, strings.Join(addresses, ","),
	)
	resp, err := i.get(ctx, url)
	if err != nil {
		return false, fmt.Errorf("retrieving address activity: %w", err)
	}

	var txs addressTxs
	if err := json.Unmarshal([]byte(resp), &txs); err != nil {
		return false, fmt.Errorf("retrieving address activity: %w", err)
	}
	return txs.TotalItems > 0, nil
}

func (i *insight) EstimateFee(ctx context.Context, nbBlocks int) (int64, error) {
	url := fmt.Sprintf("%s/utils/estimatefee?nbBlocks=%d", i.apiURL, nbBlocks)
	resp, err := i.get(ctx, url)
	if err != nil {
		return explorer.FeeUnavailable, fmt.Errorf("estimating fee: %w", err)
	}

	// the response maps the requested target to a rate in BTC/kB
	var estimates map[string]float64
	if err := json.Unmarshal([]byte(resp), &estimates); err != nil {
		return explorer.FeeUnavailable, fmt.Errorf("estimating fee: %w", err)
	}
	btcPerKb, ok := estimates[strconv.Itoa(nbBlocks)]
	if !ok || btcPerKb < 0 {
		return explorer.FeeUnavailable, nil
	}
	return int64(math.Round(btcPerKb * 1e8)), nil
}

func (i *insight) Broadcast(ctx context.Context, rawTx string) (string, error) {
	url := fmt.Sprintf("%s/tx/send", i.apiURL)
	body, _ := json.Marshal(map[string]string{"rawtx": rawTx})
	status, resp, err := i.request(ctx, "POST", url, string(body))
	if err != nil {
		return "", fmt.Errorf("broadcasting tx: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("broadcasting tx: %s", resp)
	}

	var br broadcastResponse
	if err := json.Unmarshal([]byte(resp), &br); err != nil {
		return "", fmt.Errorf("broadcasting tx: %w", err)
	}
	return br.TxID, nil
}

func (i *insight) get(ctx context.Context, url string) (string, error) {
	status, resp, err := i.request(ctx, "GET", url, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf(resp)
	}
	return resp, nil
}

func (i *insight) request(
	ctx context.Context, method, url, body string,
) (int, string, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return 0, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, i.requestTimeout)
	defer cancel()

	type result struct {
		status int
		body   string
	}
	res, err := i.cb.Execute(func() (interface{}, error) {
		header := map[string]string{"Content-Type": "application/json"}
		status, resp, err := httputil.NewHTTPRequest(ctx, method, url, body, header)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf(resp)
		}
		return result{status, resp}, nil
	})
	if err != nil {
		return 0, "", err
	}
	r := res.(result)
	return r.status, r.body, nil
}
