package multibaas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"mbsheets/internal/model"
	"mbsheets/internal/query"
)

var _ query.AddressEventsBackend = (*Client)(nil)

// defaultChain is the chain segment of deployment-scoped API paths.
const defaultChain = "ethereum"

type contractRef struct {
	Address      string `json:"address"`
	AddressLabel string `json:"addressLabel"`
	Name         string `json:"name"`
}

type argument struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// addressEvent is one entry of an address event listing.
type addressEvent struct {
	TriggeredAt string `json:"triggeredAt"`
	Event       struct {
		Name       string      `json:"name"`
		Signature  string      `json:"signature"`
		Inputs     []argument  `json:"inputs"`
		IndexInLog json.Number `json:"indexInLog"`
		Contract   contractRef `json:"contract"`
	} `json:"event"`
	Transaction struct {
		From           string      `json:"from"`
		TxData         string      `json:"txData"`
		TxHash         string      `json:"txHash"`
		TxIndexInBlock json.Number `json:"txIndexInBlock"`
		BlockHash      string      `json:"blockHash"`
		BlockNumber    json.Number `json:"blockNumber"`
		Contract       contractRef `json:"contract"`
		Method         struct {
			Name      string     `json:"name"`
			Signature string     `json:"signature"`
			Inputs    []argument `json:"inputs"`
		} `json:"method"`
	} `json:"transaction"`
}

// FetchAddressEvents lists events emitted by the contract at address, which
// may be an address label registered on the deployment.
func (c *Client) FetchAddressEvents(ctx context.Context, address string, limit, offset int) ([]model.ResultRow, error) {
	path := apiPrefix + "/chains/" + defaultChain + "/addresses/" + url.PathEscape(address) + "/events"
	var events []addressEvent
	if err := c.call(ctx, http.MethodGet, path, pageParams(limit, offset), nil, &events); err != nil {
		return nil, err
	}
	rows := make([]model.ResultRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, ev.row())
	}
	return rows, nil
}

func (ev addressEvent) row() model.ResultRow {
	tx := ev.Transaction
	row := model.ResultRow{
		query.ColTriggeredAt:          ev.TriggeredAt,
		query.ColEventName:            ev.Event.Name,
		query.ColEventDef:             ev.Event.Signature,
		query.ColEventIndexInLog:      number(ev.Event.IndexInLog),
		query.ColEventContractLabel:   ev.Event.Contract.AddressLabel,
		query.ColEventContractAddress: ev.Event.Contract.Address,
		query.ColEventContractName:    ev.Event.Contract.Name,
		query.ColTxFrom:               tx.From,
		query.ColTxData:               tx.TxData,
		query.ColTxHash:               tx.TxHash,
		query.ColTxIndexInBlock:       number(tx.TxIndexInBlock),
		query.ColTxBlockHash:          tx.BlockHash,
		query.ColTxBlockNumber:        number(tx.BlockNumber),
		query.ColTxContractLabel:      tx.Contract.AddressLabel,
		query.ColTxContractAddress:    tx.Contract.Address,
		query.ColTxContractName:       tx.Contract.Name,
		query.ColFnName:               tx.Method.Name,
		query.ColFnDef:                tx.Method.Signature,
	}
	for i, arg := range ev.Event.Inputs {
		row[query.EventInputPrefix+strconv.Itoa(i)] = arg.Value
	}
	for i, arg := range tx.Method.Inputs {
		row[query.MethodInputPrefix+strconv.Itoa(i)] = arg.Value
	}
	return row
}

func number(n json.Number) interface{} {
	if n == "" {
		return ""
	}
	return n
}
