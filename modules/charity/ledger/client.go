package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/contract"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
)

// receiptPollInterval is how often WaitMined polls for a transaction receipt.
const receiptPollInterval = time.Second

// Make sure to implement the LedgerDataGateway interface
var _ datagateway.LedgerDataGateway = (*Client)(nil)

// Client reads and writes the StandardCharity contract over an Ethereum
// node's HTTPS JSON-RPC endpoint.
type Client struct {
	eth        *ethclient.Client
	binding    *contract.Binding
	privateKey *ecdsa.PrivateKey
	owner      common.Address
	chainID    *big.Int
	timeout    time.Duration
}

type Options struct {
	// OwnerPrivateKey is the hex-encoded key signing write transactions.
	// Read-only clients may leave it empty.
	OwnerPrivateKey string

	// ChainID for EIP-155 signing. Defaults to 1 (mainnet).
	ChainID int64

	// Timeout bounds every RPC round trip. Defaults to 30s.
	Timeout time.Duration
}

func NewClient(eth *ethclient.Client, binding *contract.Binding, opts Options) (*Client, error) {
	client := &Client{
		eth:     eth,
		binding: binding,
		chainID: big.NewInt(max(opts.ChainID, 1)),
		timeout: opts.Timeout,
	}
	if client.timeout <= 0 {
		client.timeout = 30 * time.Second
	}

	if opts.OwnerPrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(opts.OwnerPrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid owner private key")
		}
		client.privateKey = privateKey
		client.owner = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	return client, nil
}

// call executes a read-only contract function against the latest block and
// unpacks the result into out.
func (c *Client) call(ctx context.Context, out any, method string, args ...any) error {
	data, err := c.binding.ABI().Pack(method, args...)
	if err != nil {
		return errors.Wrapf(err, "can't pack call data for %q", method)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	to := c.binding.Address()
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return errors.Wrapf(err, "eth_call %q failed", method)
	}
	if len(result) == 0 {
		return errors.Wrapf(errs.NotFound, "empty result from %q", method)
	}

	if err := c.binding.ABI().UnpackIntoInterface(out, method, result); err != nil {
		return errors.Wrapf(err, "can't unpack result of %q", method)
	}
	return nil
}

// submit builds, signs and sends a contract write transaction from the owner
// wallet, returning the transaction hash without waiting for it to mine.
func (c *Client) submit(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error) {
	if c.privateKey == nil {
		return common.Hash{}, errors.Wrap(errs.ArgumentRequired, "no owner private key configured")
	}

	data, err := c.binding.ABI().Pack(method, args...)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "can't pack call data for %q", method)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(ctx, c.owner)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't get pending nonce")
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't get gas price")
	}

	to := c.binding.Address()
	if value == nil {
		value = new(big.Int)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.owner,
		To:       &to,
		Value:    value,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "can't estimate gas for %q", method)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't sign transaction")
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, errors.Wrapf(err, "can't send %q transaction", method)
	}
	return signedTx.Hash(), nil
}

// WaitMined polls for the receipt of a submitted transaction until it is
// mined or the context expires. A reverted transaction is an error.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return errors.Wrapf(errs.SomethingWentWrong, "transaction %s reverted", txHash)
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return errors.Wrapf(err, "can't get receipt for %s", txHash)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context done while waiting for receipt")
		case <-ticker.C:
		}
	}
}

// SuggestGasPrice returns the node's current gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't get gas price")
	}
	return gasPrice, nil
}
