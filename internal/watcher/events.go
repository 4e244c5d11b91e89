package watcher

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Event is one decoded contract log.
type Event struct {
	Name        string
	Signature   string
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint

	// Topics holds the decoded indexed arguments, Data the decoded
	// non-indexed ones, both keyed by argument name.
	Topics map[string]interface{}
	Data   map[string]interface{}

	Raw types.Log
}

func (w *Watcher) decode(raw types.Log) (Event, error) {
	if len(raw.Topics) == 0 {
		return Event{}, errors.New("log carries no topics")
	}

	event, err := w.contractAbi.EventByID(raw.Topics[0])
	if err != nil {
		return Event{}, errors.Wrap(err, "failed to get event by topic", logan.F{
			"topic": raw.Topics[0].Hex(),
		})
	}

	dataFields := make(map[string]interface{})
	if len(raw.Data) > 0 {
		if err = w.contractAbi.UnpackIntoMap(dataFields, event.Name, raw.Data); err != nil {
			return Event{}, errors.Wrap(err, "failed to unpack event data", logan.F{
				"event": event.Name,
			})
		}
	}

	topicFields := make(map[string]interface{})
	indexed := make(abi.Arguments, 0, len(event.Inputs))
	for _, in := range event.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if err = abi.ParseTopicsIntoMap(topicFields, indexed, raw.Topics[1:]); err != nil {
			return Event{}, errors.Wrap(err, "failed to parse event topics", logan.F{
				"event": event.Name,
			})
		}
	}

	return Event{
		Name:        event.Name,
		Signature:   event.Sig,
		TxHash:      raw.TxHash,
		BlockNumber: raw.BlockNumber,
		LogIndex:    raw.Index,
		Topics:      topicFields,
		Data:        dataFields,
		Raw:         raw,
	}, nil
}
