package ledger

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/standard-charity/indexer/modules/charity/contract"
)

// Subscriber dials the node's websocket endpoint and opens the two push
// subscriptions the reconciliation engine consumes. Each Connect call
// establishes a fresh connection; after any subscription error the caller
// closes the session and connects again.
type Subscriber struct {
	wsURL   string
	binding *contract.Binding
}

func NewSubscriber(wsURL string, binding *contract.Binding) *Subscriber {
	return &Subscriber{
		wsURL:   wsURL,
		binding: binding,
	}
}

// Session is one live websocket connection with both subscriptions open.
type Session struct {
	client *ethclient.Client

	Heads    chan *types.Header
	Logs     chan types.Log
	HeadsErr <-chan error
	LogsErr  <-chan error

	headsSub ethereum.Subscription
	logsSub  ethereum.Subscription
}

// Connect dials the websocket endpoint and subscribes to new heads and to
// the contract's logs, filtered to the consumed event topics.
func (s *Subscriber) Connect(ctx context.Context) (*Session, error) {
	client, err := ethclient.DialContext(ctx, s.wsURL)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial websocket endpoint %q", s.wsURL)
	}

	session := &Session{
		client: client,
		Heads:  make(chan *types.Header, 16),
		Logs:   make(chan types.Log, 64),
	}

	headsSub, err := client.SubscribeNewHead(ctx, session.Heads)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "can't subscribe to new heads")
	}
	session.headsSub = headsSub
	session.HeadsErr = headsSub.Err()

	logsSub, err := client.SubscribeFilterLogs(ctx, s.logFilter(), session.Logs)
	if err != nil {
		headsSub.Unsubscribe()
		client.Close()
		return nil, errors.Wrap(err, "can't subscribe to contract logs")
	}
	session.logsSub = logsSub
	session.LogsErr = logsSub.Err()

	return session, nil
}

// logFilter restricts the log subscription to the bound contract and the
// event topics the engine consumes, recomputed from the static ABI on every
// reconnect.
func (s *Subscriber) logFilter() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{s.binding.Address()},
		Topics:    [][]common.Hash{s.binding.EventTopics()},
	}
}

// Close tears down both subscriptions and the underlying connection.
func (s *Session) Close() {
	if s.headsSub != nil {
		s.headsSub.Unsubscribe()
	}
	if s.logsSub != nil {
		s.logsSub.Unsubscribe()
	}
	if s.client != nil {
		s.client.Close()
	}
}
