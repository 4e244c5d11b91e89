// Package gobind holds hand-trimmed bindings for the recurring payments
// contract and the ERC20 standard, covering only the surface the service uses.
package gobind

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PaymentsMetaData contains all meta data concerning the Payments contract.
var PaymentsMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"orders","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"spender","type":"address"},{"name":"spenderLinkIndex","type":"uint256"},{"name":"receiver","type":"address"},{"name":"receiverLinkIndex","type":"uint256"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"period","type":"uint256"},{"name":"nextTime","type":"uint256"},{"name":"memo","type":"string"},{"name":"createdAt","type":"uint256"},{"name":"cancelledAt","type":"uint256"}]},
	{"type":"function","name":"counter","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"outcomes","type":"uint256"},{"name":"incomes","type":"uint256"}]},
	{"type":"function","name":"outcomes","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"incomes","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"executorCommissions","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"serviceCommissions","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"min","type":"uint256"},{"name":"max","type":"uint256"},{"name":"percent","type":"uint256"},{"name":"percentDiv","type":"uint256"}]},
	{"type":"function","name":"Subscribe","stateMutability":"nonpayable","inputs":[{"name":"receiver","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"period","type":"uint256"},{"name":"startsAt","type":"uint256"},{"name":"memo","type":"string"}],"outputs":[]},
	{"type":"function","name":"Execute","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"Cancel","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"ExecuteMany","stateMutability":"nonpayable","inputs":[{"name":"blockNumber","type":"uint256"},{"name":"orderIds","type":"uint256[]"}],"outputs":[]},
	{"type":"event","name":"Subscription","inputs":[{"name":"spender","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"id","type":"uint256","indexed":false}]},
	{"type":"event","name":"Cancellation","inputs":[{"name":"spender","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"id","type":"uint256","indexed":false}]},
	{"type":"event","name":"Execution","inputs":[{"name":"spender","type":"address","indexed":true},{"name":"receiver","type":"address","indexed":true},{"name":"id","type":"uint256","indexed":false},{"name":"serviceFee","type":"uint256","indexed":false},{"name":"executorFee","type":"uint256","indexed":false}]},
	{"type":"event","name":"ExecutionPool","inputs":[{"name":"executor","type":"address","indexed":true},{"name":"execBlockNumber","type":"uint256","indexed":false}]}
]`,
}

// PaymentsOrder mirrors the contract's order storage slot.
type PaymentsOrder struct {
	Spender           common.Address
	SpenderLinkIndex  *big.Int
	Receiver          common.Address
	ReceiverLinkIndex *big.Int
	Token             common.Address
	Amount            *big.Int
	Period            *big.Int
	NextTime          *big.Int
	Memo              string
	CreatedAt         *big.Int
	CancelledAt       *big.Int
}

// PaymentsCounter is the pair of per-owner list lengths.
type PaymentsCounter struct {
	Outcomes *big.Int
	Incomes  *big.Int
}

// PaymentsCommission is the service fee schedule of one token.
type PaymentsCommission struct {
	Min        *big.Int
	Max        *big.Int
	Percent    *big.Int
	PercentDiv *big.Int
}

// Payments is a read/pack binding around the deployed payments contract.
type Payments struct {
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

func NewPayments(address common.Address, backend bind.ContractBackend) (*Payments, error) {
	parsed, err := abi.JSON(strings.NewReader(PaymentsMetaData.ABI))
	if err != nil {
		return nil, err
	}

	return &Payments{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// ABI exposes the parsed contract ABI for log decoding.
func (p *Payments) ABI() abi.ABI {
	return p.abi
}

// EventTopic returns the topic hash of a contract event by name.
func (p *Payments) EventTopic(name string) common.Hash {
	return p.abi.Events[name].ID
}

func (p *Payments) Orders(opts *bind.CallOpts, id *big.Int) (PaymentsOrder, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "orders", id)
	if err != nil {
		return PaymentsOrder{}, err
	}

	return PaymentsOrder{
		Spender:           *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		SpenderLinkIndex:  *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Receiver:          *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		ReceiverLinkIndex: *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		Token:             *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
		Amount:            *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		Period:            *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
		NextTime:          *abi.ConvertType(out[7], new(*big.Int)).(**big.Int),
		Memo:              *abi.ConvertType(out[8], new(string)).(*string),
		CreatedAt:         *abi.ConvertType(out[9], new(*big.Int)).(**big.Int),
		CancelledAt:       *abi.ConvertType(out[10], new(*big.Int)).(**big.Int),
	}, nil
}

func (p *Payments) Counter(opts *bind.CallOpts, owner common.Address) (PaymentsCounter, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "counter", owner)
	if err != nil {
		return PaymentsCounter{}, err
	}

	return PaymentsCounter{
		Outcomes: *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Incomes:  *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
	}, nil
}

func (p *Payments) Outcomes(opts *bind.CallOpts, owner common.Address, index *big.Int) (*big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "outcomes", owner, index)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (p *Payments) Incomes(opts *bind.CallOpts, owner common.Address, index *big.Int) (*big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "incomes", owner, index)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (p *Payments) ExecutorCommissions(opts *bind.CallOpts, token common.Address) (*big.Int, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "executorCommissions", token)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (p *Payments) ServiceCommissions(opts *bind.CallOpts, token common.Address) (PaymentsCommission, error) {
	var out []interface{}
	err := p.contract.Call(opts, &out, "serviceCommissions", token)
	if err != nil {
		return PaymentsCommission{}, err
	}

	return PaymentsCommission{
		Min:        *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Max:        *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Percent:    *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		PercentDiv: *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
	}, nil
}

// PackSubscribe builds calldata for Subscribe.
func (p *Payments) PackSubscribe(receiver, token common.Address, amount, period, startsAt *big.Int, memo string) ([]byte, error) {
	return p.abi.Pack("Subscribe", receiver, token, amount, period, startsAt, memo)
}

// PackExecute builds calldata for Execute.
func (p *Payments) PackExecute(orderID *big.Int) ([]byte, error) {
	return p.abi.Pack("Execute", orderID)
}

// PackCancel builds calldata for Cancel.
func (p *Payments) PackCancel(orderID *big.Int) ([]byte, error) {
	return p.abi.Pack("Cancel", orderID)
}

// PackExecuteMany builds calldata for ExecuteMany against a processing pool
// snapshot taken at blockNumber.
func (p *Payments) PackExecuteMany(blockNumber *big.Int, orderIDs []*big.Int) ([]byte, error) {
	return p.abi.Pack("ExecuteMany", blockNumber, orderIDs)
}
