package contract

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// standardCharityABI is the statically declared interface of the
// StandardCharity contract: the four events the engine consumes plus every
// view and write function the backend touches. The schema is fixed at build
// time, no runtime ABI loading.
const standardCharityABI = `[
	{"type":"event","name":"LogNewDonation","anonymous":false,"inputs":[
		{"name":"donator","type":"address","indexed":false},
		{"name":"donationNumber","type":"uint256","indexed":false},
		{"name":"value","type":"uint256","indexed":false},
		{"name":"overallDonationNum","type":"uint256","indexed":false}]},
	{"type":"event","name":"LogNewExpenditure","anonymous":false,"inputs":[
		{"name":"expenditureNumber","type":"uint256","indexed":false},
		{"name":"valueExpendedETH","type":"uint256","indexed":false}]},
	{"type":"event","name":"LogNewExpendedDonation","anonymous":false,"inputs":[
		{"name":"donator","type":"address","indexed":false},
		{"name":"donationNumber","type":"uint256","indexed":false},
		{"name":"expenditureNumber","type":"uint256","indexed":false},
		{"name":"expendedDonationNumber","type":"uint256","indexed":false}]},
	{"type":"event","name":"LogNewRefund","anonymous":false,"inputs":[
		{"name":"donator","type":"address","indexed":false},
		{"name":"donationNumber","type":"uint256","indexed":false},
		{"name":"valueETHRefunded","type":"uint256","indexed":false}]},

	{"type":"function","name":"donations","stateMutability":"view","inputs":[
		{"name":"","type":"address"},{"name":"","type":"uint256"}],"outputs":[
		{"name":"donator","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"timestamp","type":"uint256"},
		{"name":"valueExpendedETH","type":"uint256"},
		{"name":"valueExpendedUSD","type":"uint256"},
		{"name":"valueRefundedETH","type":"uint256"},
		{"name":"donationNumber","type":"uint256"},
		{"name":"numExpenditures","type":"uint256"}]},
	{"type":"function","name":"donationTracker","stateMutability":"view","inputs":[
		{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"expenditures","stateMutability":"view","inputs":[
		{"name":"","type":"uint256"}],"outputs":[
		{"name":"valueExpendedETH","type":"uint256"},
		{"name":"valueExpendedUSD","type":"uint256"},
		{"name":"videoHash","type":"string"},
		{"name":"receiptHash","type":"string"},
		{"name":"timestamp","type":"uint256"},
		{"name":"numExpendedDonations","type":"uint256"},
		{"name":"valueExpendedByDonations","type":"uint256"},
		{"name":"platesDeployed","type":"uint256"}]},
	{"type":"function","name":"expendedDonations","stateMutability":"view","inputs":[
		{"name":"","type":"uint256"}],"outputs":[
		{"name":"donator","type":"address"},
		{"name":"valueExpendedETH","type":"uint256"},
		{"name":"valueExpendedUSD","type":"uint256"},
		{"name":"expenditureNumber","type":"uint256"},
		{"name":"donationNumber","type":"uint256"},
		{"name":"platesDeployed","type":"uint256"}]},
	{"type":"function","name":"getTotalNumDonations","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTotalNumExpenditures","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getTotalNumExpendedDonations","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getContractBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"maxDonation","stateMutability":"view","inputs":[],"outputs":[
		{"name":"donator","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"timestamp","type":"uint256"}]},
	{"type":"function","name":"latestDonation","stateMutability":"view","inputs":[],"outputs":[
		{"name":"donator","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"timestamp","type":"uint256"}]},
	{"type":"function","name":"nextDonationToExpend","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalDonationsETH","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalExpendedETH","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalExpendedUSD","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalPlatesDeployed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},

	{"type":"function","name":"createExpenditure","stateMutability":"payable","inputs":[
		{"name":"valueUSD","type":"uint256"},
		{"name":"videoHash","type":"string"},
		{"name":"receiptHash","type":"string"},
		{"name":"platesDeployed","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"createExpendedDonation","stateMutability":"nonpayable","inputs":[
		{"name":"donator","type":"address"},
		{"name":"valueETH","type":"uint256"},
		{"name":"valueUSD","type":"uint256"},
		{"name":"expenditureNumber","type":"uint256"},
		{"name":"donationNumber","type":"uint256"},
		{"name":"platesDeployed","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setNextDonationToExpend","stateMutability":"nonpayable","inputs":[
		{"name":"overallDonationNum","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"refundDonation","stateMutability":"nonpayable","inputs":[
		{"name":"donator","type":"address"},
		{"name":"donationNumber","type":"uint256"},
		{"name":"valueETHToRefund","type":"uint256"}],"outputs":[]}
]`

// Event names consumed by the reconciliation engine.
const (
	EventNewDonation         = "LogNewDonation"
	EventNewExpenditure      = "LogNewExpenditure"
	EventNewExpendedDonation = "LogNewExpendedDonation"
	EventNewRefund           = "LogNewRefund"
)

// Binding is the parsed StandardCharity interface bound to a deployed
// contract address.
type Binding struct {
	address       common.Address
	abi           abi.ABI
	eventsByTopic map[common.Hash]string
}

func New(address common.Address) (*Binding, error) {
	parsed, err := abi.JSON(strings.NewReader(standardCharityABI))
	if err != nil {
		return nil, errors.Wrap(err, "can't parse StandardCharity ABI")
	}

	eventsByTopic := make(map[common.Hash]string)
	for _, name := range []string{EventNewDonation, EventNewExpenditure, EventNewExpendedDonation, EventNewRefund} {
		event, ok := parsed.Events[name]
		if !ok {
			return nil, errors.Wrapf(errors.New("event missing from ABI"), "event %q", name)
		}
		eventsByTopic[event.ID] = name
	}

	return &Binding{
		address:       address,
		abi:           parsed,
		eventsByTopic: eventsByTopic,
	}, nil
}

// Address returns the bound contract address.
func (b *Binding) Address() common.Address {
	return b.address
}

// ABI returns the parsed contract interface.
func (b *Binding) ABI() abi.ABI {
	return b.abi
}

// EventTopics returns the topic hashes of all consumed events, recomputed
// from the static ABI (used to build the log subscription filter).
func (b *Binding) EventTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(b.eventsByTopic))
	for topic := range b.eventsByTopic {
		topics = append(topics, topic)
	}
	return topics
}

// EventName resolves a log's first topic to a known event name.
func (b *Binding) EventName(topic common.Hash) (string, bool) {
	name, ok := b.eventsByTopic[topic]
	return name, ok
}
