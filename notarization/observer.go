package notarization

import "docnotary/blockchain/types"

// Observer is notified of lifecycle transitions.
// Each method is called at most once per transaction, outside the manager's lock.
type Observer interface {
	TransactionStarted(tx Transaction)
	TransactionConfirmed(tx Transaction, receipt *types.Receipt)
	TransactionFailed(tx Transaction, err *TxError)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped
type ObserverFuncs struct {
	OnStarted   func(tx Transaction)
	OnConfirmed func(tx Transaction, receipt *types.Receipt)
	OnFailed    func(tx Transaction, err *TxError)
}

func (f ObserverFuncs) TransactionStarted(tx Transaction) {
	if f.OnStarted != nil {
		f.OnStarted(tx)
	}
}

func (f ObserverFuncs) TransactionConfirmed(tx Transaction, receipt *types.Receipt) {
	if f.OnConfirmed != nil {
		f.OnConfirmed(tx, receipt)
	}
}

func (f ObserverFuncs) TransactionFailed(tx Transaction, err *TxError) {
	if f.OnFailed != nil {
		f.OnFailed(tx, err)
	}
}

// Observers fans a notification out to every member in order
type Observers []Observer

func (o Observers) TransactionStarted(tx Transaction) {
	for _, obs := range o {
		obs.TransactionStarted(tx)
	}
}

func (o Observers) TransactionConfirmed(tx Transaction, receipt *types.Receipt) {
	for _, obs := range o {
		obs.TransactionConfirmed(tx, receipt)
	}
}

func (o Observers) TransactionFailed(tx Transaction, err *TxError) {
	for _, obs := range o {
		obs.TransactionFailed(tx, err)
	}
}
