// Package ledger is the Ethereum backend of the file registry: a thin JSON-RPC client for the
// registry contract. Transactions are sent with eth_sendTransaction, so the connected node or
// wallet signs them and owns keys, gas and network selection.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/fyles/internal/domain"
	apperrors "github.com/zzenonn/fyles/internal/errors"
	"github.com/zzenonn/fyles/internal/hashcodec"
)

// RegistryABI describes the methods of the registry contract this client calls.
const RegistryABI = `[
	{"type":"function","name":"addFile","stateMutability":"nonpayable",
	 "inputs":[{"name":"_fileHash","type":"bytes32"},{"name":"_hashFunction","type":"uint8"},
	           {"name":"_hashSize","type":"uint8"},{"name":"_fileType","type":"uint8"}],
	 "outputs":[]},
	{"type":"function","name":"getAllFileHashes","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bytes32[]"}]},
	{"type":"function","name":"getAllFileMetadata","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bytes32[]"}]}
]`

const defaultReceiptPoll = 2 * time.Second

// Caller is the part of *rpc.Client the contract uses.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Options configure a Contract.
type Options struct {
	// Account overrides the provider's first account.
	Account string
	// WaitReceipt makes AddFile block until the transaction is mined.
	WaitReceipt bool
	ReceiptPoll time.Duration
}

type Contract struct {
	rpc     Caller
	address common.Address
	abi     abi.ABI
	opts    Options
}

type callArgs struct {
	From *common.Address `json:"from,omitempty"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

type receipt struct {
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
}

// Dial connects to the provider at rawurl.
func Dial(ctx context.Context, rawurl, address string, opts Options) (*Contract, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		log.WithError(err).Error("Error finding web3 provider")
		return nil, apperrors.Wrap(apperrors.ErrProviderUnavailable, err)
	}
	return NewContract(client, address, opts)
}

// NewContract binds the registry at address over caller.
func NewContract(caller Caller, address string, opts Options) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, apperrors.ConfigNotSetError("ledger.contract_address")
	}
	if opts.Account != "" && !common.IsHexAddress(opts.Account) {
		return nil, fmt.Errorf("ledger.account %q is not an address", opts.Account)
	}
	if opts.ReceiptPoll <= 0 {
		opts.ReceiptPoll = defaultReceiptPoll
	}

	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, err
	}

	return &Contract{
		rpc:     caller,
		address: common.HexToAddress(address),
		abi:     parsed,
		opts:    opts,
	}, nil
}

// Account returns the configured account, or the first account the provider exposes.
func (c *Contract) Account(ctx context.Context) (string, error) {
	if c.opts.Account != "" {
		return common.HexToAddress(c.opts.Account).Hex(), nil
	}

	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return "", apperrors.Wrap(apperrors.ErrProviderUnavailable, err)
	}
	if len(accounts) == 0 {
		return "", apperrors.Wrap(apperrors.ErrProviderUnavailable, fmt.Errorf("provider exposes no accounts"))
	}
	return accounts[0].Hex(), nil
}

// AddFile sends addFile(fileHash, hashFunction, hashSize, fileType) from the given account and
// returns the transaction hash.
func (c *Contract) AddFile(ctx context.Context, rec domain.FileRecord, from string) (string, error) {
	digest, err := hashcodec.DigestWord(rec.FileHash)
	if err != nil {
		return "", err
	}
	fn, err := hashcodec.ParseByte(rec.HashFunction)
	if err != nil {
		return "", err
	}
	size, err := hashcodec.ParseByte(rec.HashSize)
	if err != nil {
		return "", err
	}

	data, err := c.abi.Pack("addFile", digest, fn, size, uint8(rec.FileType))
	if err != nil {
		return "", err
	}
	sender, err := address(from)
	if err != nil {
		return "", err
	}

	var txHash common.Hash
	args := callArgs{From: &sender, To: &c.address, Data: data}
	if err := c.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", args); err != nil {
		return "", err
	}
	log.Debugf("Sent addFile transaction %s", txHash.Hex())

	if c.opts.WaitReceipt {
		if err := c.waitMined(ctx, txHash); err != nil {
			return txHash.Hex(), err
		}
	}
	return txHash.Hex(), nil
}

// GetAllFileHashes returns the digest words registered by from, oldest first.
func (c *Contract) GetAllFileHashes(ctx context.Context, from string) ([]string, error) {
	return c.callWords(ctx, "getAllFileHashes", from)
}

// GetAllFileMetadata returns the packed metadata words registered by from, oldest first.
func (c *Contract) GetAllFileMetadata(ctx context.Context, from string) ([]string, error) {
	return c.callWords(ctx, "getAllFileMetadata", from)
}

func (c *Contract) callWords(ctx context.Context, method, from string) ([]string, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, err
	}
	sender, err := address(from)
	if err != nil {
		return nil, err
	}

	var out hexutil.Bytes
	args := callArgs{From: &sender, To: &c.address, Data: data}
	if err := c.rpc.CallContext(ctx, &out, "eth_call", args, "latest"); err != nil {
		return nil, err
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	words, ok := values[0].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, values[0])
	}

	result := make([]string, len(words))
	for i, w := range words {
		result[i] = hexutil.Encode(w[:])
	}
	return result, nil
}

func (c *Contract) waitMined(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(c.opts.ReceiptPoll)
	defer ticker.Stop()

	for {
		var r *receipt
		if err := c.rpc.CallContext(ctx, &r, "eth_getTransactionReceipt", txHash); err != nil {
			return err
		}
		if r != nil {
			if r.Status == 0 {
				return fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			log.Debugf("Transaction %s mined in block %v", txHash.Hex(), r.BlockNumber)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func address(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not an address", s)
	}
	return common.HexToAddress(s), nil
}
