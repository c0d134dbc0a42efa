package insight

// utxo is the shape of an unspent output returned by the insight API.
type utxo struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Address       string  `json:"address"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Satoshis      uint64  `json:"satoshis"`
	Amount        float64 `json:"amount"`
	Confirmations int64   `json:"confirmations"`
}

type txInput struct {
	TxID string `json:"txid"`
}

type tx struct {
	TxID          string    `json:"txid"`
	Confirmations int64     `json:"confirmations"`
	Vin           []txInput `json:"vin"`
}

type addressTxs struct {
	TotalItems int `json:"totalItems"`
}

type broadcastResponse struct {
	TxID string `json:"txid"`
}
