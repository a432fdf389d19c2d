package notarization

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"docnotary/blockchain/chains"
	blockchain "docnotary/blockchain/client"
	"docnotary/blockchain/types"
	"docnotary/config"
	"docnotary/gas"

	"github.com/ethereum/go-ethereum/common"
)

// Watch policies
const (
	WatchSingle     = "single"
	WatchConcurrent = "concurrent"
)

// Journal persists transaction records across restarts
type Journal interface {
	Save(ctx context.Context, tx Transaction) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Load(ctx context.Context) ([]Transaction, error)
}

// GasEstimator produces the fee envelope for a write
type GasEstimator interface {
	Estimate(ctx context.Context, hash common.Hash, meta string, chain blockchain.Registry) (*gas.Estimate, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithObserver registers an observer for lifecycle transitions
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// WithJournal persists every record change to j
func WithJournal(j Journal) Option {
	return func(m *Manager) { m.journal = j }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// DocumentDetails is the on-chain registry entry for a hash
type DocumentDetails struct {
	Hash        string `json:"hash"`
	Submitter   string `json:"submitter"`
	Timestamp   uint64 `json:"timestamp"`
	Meta        string `json:"meta"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// Manager owns the transaction list and drives each record through its lifecycle
type Manager struct {
	chain     blockchain.Registry
	estimator GasEstimator
	timeout   time.Duration
	logger    *log.Logger
	observers Observers
	journal   Journal
	now       func() time.Time

	slot chan struct{} // nil under the concurrent policy

	mu       sync.Mutex
	txs         []Transaction
	watches     map[string]context.CancelFunc
	submissions map[string]context.CancelFunc // pending records whose write has not been issued
	changed     chan struct{}
	lastTime    int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. chain may be nil, in which case every submission
// is rejected with ErrWalletNotConnected.
func NewManager(chain blockchain.Registry, estimator GasEstimator, cfg config.TransactionConfig, logger *log.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		chain:       chain,
		estimator:   estimator,
		timeout:     cfg.ReceiptTimeoutDuration(),
		logger:      logger,
		now:         time.Now,
		watches:     make(map[string]context.CancelFunc),
		submissions: make(map[string]context.CancelFunc),
		changed:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	if cfg.WatchPolicy != WatchConcurrent {
		m.slot = make(chan struct{}, 1)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NotarizeDocument validates and submits hash, returning once the write has been
// accepted by a node (or has failed). The receipt is watched in the background.
// When a record was created the id is returned even if the submission failed.
func (m *Manager) NotarizeDocument(ctx context.Context, hash, fileName, meta string) (string, error) {
	tx, digest, err := m.begin(ctx, hash, fileName, meta)
	if err != nil {
		return "", err
	}
	return tx.ID, m.submit(ctx, tx.ID, digest, meta)
}

// Enqueue validates hash and creates the pending record, then submits in the background.
// Precondition failures are returned synchronously; submission failures land on the record.
func (m *Manager) Enqueue(ctx context.Context, hash, fileName, meta string) (string, error) {
	tx, digest, err := m.begin(ctx, hash, fileName, meta)
	if err != nil {
		return "", err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.submit(m.ctx, tx.ID, digest, meta); err != nil {
			m.logger.Printf("Notarization %s failed: %v", tx.ID, err)
		}
	}()
	return tx.ID, nil
}

// begin checks preconditions and appends the pending record
func (m *Manager) begin(ctx context.Context, hash, fileName, meta string) (Transaction, common.Hash, error) {
	if m.chain == nil || m.chain.Account() == "" {
		return Transaction{}, common.Hash{}, ErrWalletNotConnected
	}
	if m.chain.ContractAddress() == "" {
		return Transaction{}, common.Hash{}, fmt.Errorf("%w: chain %s", ErrNoContract, m.chain.ChainID())
	}
	normalized, err := types.NormalizeHash(hash)
	if err != nil {
		return Transaction{}, common.Hash{}, err
	}
	digest := common.HexToHash(normalized)

	if err := m.checkLocal(normalized); err != nil {
		return Transaction{}, common.Hash{}, err
	}
	exists, err := m.chain.Exists(ctx, digest)
	if err != nil {
		return Transaction{}, common.Hash{}, fmt.Errorf("failed to check document existence: %w", err)
	}
	if exists {
		return Transaction{}, common.Hash{}, ErrAlreadyNotarized
	}

	m.mu.Lock()
	if err := m.checkLocalLocked(normalized); err != nil {
		m.mu.Unlock()
		return Transaction{}, common.Hash{}, err
	}
	now := m.timestampLocked()
	tx := Transaction{
		ID:        m.newIDLocked(now, normalized),
		Hash:      normalized,
		FileName:  fileName,
		Meta:      meta,
		Status:    StatusPending,
		ChainID:   m.chain.ChainID(),
		Timestamp: now,
		UpdatedAt: now,
	}
	m.txs = append(m.txs, tx)
	m.broadcastLocked()
	m.mu.Unlock()

	m.logger.Printf("Notarization %s created for %s (%s)", tx.ID, tx.Hash, fileName)
	m.persist(tx)
	m.observers.TransactionStarted(tx)
	return tx, digest, nil
}

func (m *Manager) checkLocal(hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkLocalLocked(hash)
}

func (m *Manager) checkLocalLocked(hash string) error {
	for _, tx := range m.txs {
		if tx.Hash != hash {
			continue
		}
		switch tx.Status {
		case StatusPending, StatusConfirming:
			return fmt.Errorf("%w: %s", ErrInFlight, tx.ID)
		case StatusConfirmed:
			return ErrAlreadyNotarized
		}
	}
	return nil
}

// submit estimates gas and issues the write for a pending record.
// Removing the record before the write is issued cancels the submission.
func (m *Manager) submit(ctx context.Context, id string, hash common.Hash, meta string) error {
	ctx, done := m.track(ctx, id)
	defer done()

	waited, err := m.acquire(ctx)
	if err != nil {
		if _, ok := m.Get(id); !ok {
			return fmt.Errorf("%w: %s was removed before submission", ErrNotFound, id)
		}
		return m.fail(id, Categorize(err))
	}
	if err := m.stillPending(id); err != nil {
		m.release()
		return err
	}
	if waited {
		// The hash may have been registered by someone else while this record queued
		exists, err := m.chain.Exists(ctx, hash)
		if err != nil {
			m.release()
			return m.fail(id, Categorize(fmt.Errorf("failed to check document existence: %w", err)))
		}
		if exists {
			m.release()
			return m.fail(id, NewTxError(CategoryOther, ErrAlreadyNotarized))
		}
	}

	estimate, err := m.estimator.Estimate(ctx, hash, meta, m.chain)
	if err != nil {
		m.release()
		return m.fail(id, NewTxError(CategoryGas, err))
	}
	if estimate.Warning != "" {
		m.logger.Printf("Notarization %s: %s", id, estimate.Warning)
	}
	m.logger.Printf("Notarization %s: gas limit %d, max fee %s wei (%s source)",
		id, estimate.GasLimit, estimate.MaxFeePerGas, estimate.Source)

	handle, err := m.chain.Notarize(ctx, hash, meta, estimate.Envelope())
	if err != nil {
		m.release()
		return m.fail(id, Categorize(err))
	}

	explorer := chains.ExplorerTxURL(m.chain.ChainID(), handle.TxHash)
	if _, err := m.apply(id, Event{Kind: EventSubmitted, TxHash: handle.TxHash, ExplorerURL: explorer}); err != nil {
		m.release()
		m.logger.Printf("Notarization %s submitted as %s but the record is gone: %v", id, handle.TxHash, err)
		return err
	}
	m.logger.Printf("Notarization %s submitted: %s", id, handle.TxHash)
	m.watch(id, handle)
	return nil
}

// track derives the submission context for id and registers its cancel func
// so Remove and ClearAll can abort a submission still waiting for the slot
func (m *Manager) track(parent context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	if m.indexLocked(id) < 0 {
		cancel()
	} else {
		m.submissions[id] = cancel
	}
	m.mu.Unlock()
	return ctx, func() {
		cancel()
		m.mu.Lock()
		delete(m.submissions, id)
		m.mu.Unlock()
	}
}

func (m *Manager) stillPending(id string) error {
	tx, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s was removed before submission", ErrNotFound, id)
	}
	if tx.Status != StatusPending {
		return fmt.Errorf("notarization %s is %s, not pending", id, tx.Status)
	}
	return nil
}

// watch waits for the receipt in the background; the watch slot is released when it ends
func (m *Manager) watch(id string, handle types.TxHandle) {
	local, stop := context.WithCancel(m.ctx)
	m.mu.Lock()
	m.watches[id] = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release()
		defer func() {
			stop()
			m.mu.Lock()
			delete(m.watches, id)
			m.mu.Unlock()
		}()

		waitCtx, cancel := context.WithTimeout(local, m.timeout)
		defer cancel()
		receipt, err := m.chain.WaitReceipt(waitCtx, handle)

		switch {
		case err == nil && receipt == nil:
			m.fail(id, NewTxError(CategoryOther, errors.New("registry returned no receipt")))
		case err == nil && receipt.Success:
			if _, err := m.apply(id, Event{Kind: EventConfirmed, Receipt: receipt}); err != nil {
				m.logger.Printf("Notarization %s confirmed in block %d but could not be recorded: %v", id, receipt.BlockNumber, err)
				return
			}
			m.logger.Printf("Notarization %s confirmed in block %d", id, receipt.BlockNumber)
		case err == nil:
			m.fail(id, NewTxError(CategoryReverted, fmt.Errorf("%w: %s", types.ErrReverted, receipt.Reason)))
		case local.Err() != nil:
			m.logger.Printf("Stopped watching notarization %s", id)
		case errors.Is(err, context.DeadlineExceeded):
			m.fail(id, NewTxError(CategoryTimeout, fmt.Errorf("no receipt after %s: %w", m.timeout, err)))
		default:
			m.fail(id, Categorize(err))
		}
	}()
}

// fail moves id to failed and returns txErr
func (m *Manager) fail(id string, txErr *TxError) error {
	if _, err := m.apply(id, Event{Kind: EventFailed, Err: txErr}); err != nil {
		m.logger.Printf("Notarization %s failed (%s) but could not be recorded: %v", id, txErr.Category, err)
		return txErr
	}
	m.logger.Printf("Notarization %s failed (%s): %v", id, txErr.Category, txErr)
	return txErr
}

// apply replaces the record for id with the result of ev and notifies observers
func (m *Manager) apply(id string, ev Event) (Transaction, error) {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next, err := Transition(m.txs[idx], ev)
	if err != nil {
		m.mu.Unlock()
		return Transaction{}, err
	}
	next.UpdatedAt = m.now().UnixMilli()
	m.txs[idx] = next
	m.mu.Unlock()

	m.persist(next)
	defer m.broadcast()
	switch ev.Kind {
	case EventConfirmed:
		m.observers.TransactionConfirmed(next, ev.Receipt)
	case EventFailed:
		txErr := ev.Err
		if txErr == nil {
			txErr = NewTxError(CategoryOther, nil)
		}
		m.observers.TransactionFailed(next, txErr)
	}
	return next, nil
}

// acquire takes the watch slot and reports whether it had to wait for it
func (m *Manager) acquire(ctx context.Context) (bool, error) {
	if m.slot == nil {
		return false, nil
	}
	select {
	case m.slot <- struct{}{}:
		return false, nil
	default:
	}
	select {
	case m.slot <- struct{}{}:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	case <-m.ctx.Done():
		return true, context.Canceled
	}
}

func (m *Manager) release() {
	if m.slot == nil {
		return
	}
	<-m.slot
}

// StopWatching cancels the local receipt wait for id. The record keeps its last
// observed status; the chain write itself cannot be recalled.
func (m *Manager) StopWatching(id string) bool {
	m.mu.Lock()
	stop, ok := m.watches[id]
	m.mu.Unlock()
	if ok {
		stop()
	}
	return ok
}

// Resume starts a receipt watch for a confirming record that is not being watched,
// such as one restored from the journal
func (m *Manager) Resume(ctx context.Context, id string) error {
	tx, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if tx.Status != StatusConfirming {
		return fmt.Errorf("%w: %s is %s", ErrNotConfirming, id, tx.Status)
	}
	if m.chain == nil {
		return ErrWalletNotConnected
	}
	m.mu.Lock()
	_, watching := m.watches[id]
	m.mu.Unlock()
	if watching {
		return fmt.Errorf("%w: %s", ErrAlreadyWatching, id)
	}
	if _, err := m.acquire(ctx); err != nil {
		return err
	}
	m.logger.Printf("Resuming watch for notarization %s (%s)", id, tx.TxHash)
	m.watch(id, types.TxHandle{TxHash: tx.TxHash})
	return nil
}

// Restore replaces the list with the journal's records and returns how many were loaded
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.journal == nil {
		return 0, nil
	}
	txs, err := m.journal.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load transaction journal: %w", err)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp < txs[j].Timestamp })
	m.mu.Lock()
	m.txs = append([]Transaction(nil), txs...)
	for _, tx := range txs {
		if tx.Timestamp > m.lastTime {
			m.lastTime = tx.Timestamp
		}
	}
	m.broadcastLocked()
	m.mu.Unlock()

	// A pending record never reached a node; its submission died with the previous process
	for _, tx := range txs {
		if tx.Status == StatusPending {
			m.fail(tx.ID, NewTxError(CategoryCancelled, errors.New("submission interrupted by restart")))
		}
	}
	m.logger.Printf("Restored %d notarization records from journal", len(txs))
	return len(txs), nil
}

// ResumeAll resumes every confirming record that is not being watched and
// returns how many watches were started. Under the single-watch policy it
// blocks until each watch gets the slot.
func (m *Manager) ResumeAll(ctx context.Context) (int, error) {
	resumed := 0
	for _, tx := range m.List() {
		if tx.Status != StatusConfirming {
			continue
		}
		err := m.Resume(ctx, tx.ID)
		switch {
		case err == nil:
			resumed++
		case errors.Is(err, ErrAlreadyWatching), errors.Is(err, ErrNotConfirming), errors.Is(err, ErrNotFound):
		default:
			return resumed, err
		}
	}
	return resumed, nil
}

// Wait blocks until id reaches a terminal status, is removed, or ctx is done
func (m *Manager) Wait(ctx context.Context, id string) (Transaction, error) {
	for {
		m.mu.Lock()
		idx := m.indexLocked(id)
		if idx < 0 {
			m.mu.Unlock()
			return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		tx := m.txs[idx]
		changed := m.changed
		m.mu.Unlock()

		if tx.Status.Terminal() {
			return tx, nil
		}
		select {
		case <-ctx.Done():
			return tx, ctx.Err()
		case <-changed:
		}
	}
}

// Get returns the record for id
func (m *Manager) Get(id string) (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return Transaction{}, false
	}
	return m.txs[idx], true
}

// List returns a snapshot of every record in creation order
func (m *Manager) List() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transaction(nil), m.txs...)
}

// Stats summarizes the current list
func (m *Manager) Stats() Stats {
	return ComputeStats(m.List())
}

// Remove deletes the record for id. It stops the local watch, if any, and
// aborts a submission that has not issued its write yet.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.txs = append(m.txs[:idx:idx], m.txs[idx+1:]...)
	stop := m.watches[id]
	abort := m.submissions[id]
	m.broadcastLocked()
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if abort != nil {
		abort()
	}
	if m.journal != nil {
		if err := m.journal.Delete(context.Background(), id); err != nil {
			m.logger.Printf("Failed to delete notarization %s from journal: %v", id, err)
		}
	}
	return true
}

// ClearAll removes every record, stops every local watch and aborts queued submissions
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.txs = nil
	stops := make([]context.CancelFunc, 0, len(m.watches)+len(m.submissions))
	for _, stop := range m.watches {
		stops = append(stops, stop)
	}
	for _, abort := range m.submissions {
		stops = append(stops, abort)
	}
	m.broadcastLocked()
	m.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if m.journal != nil {
		if err := m.journal.DeleteAll(context.Background()); err != nil {
			m.logger.Printf("Failed to clear transaction journal: %v", err)
		}
	}
}

// CheckDocumentExists asks the registry whether hash is already notarized
func (m *Manager) CheckDocumentExists(ctx context.Context, hash string) (bool, error) {
	if m.chain == nil {
		return false, ErrWalletNotConnected
	}
	digest, err := types.ParseHash(hash)
	if err != nil {
		return false, err
	}
	return m.chain.Exists(ctx, digest)
}

// DocumentDetails reads the registry entry for hash
func (m *Manager) DocumentDetails(ctx context.Context, hash string) (*DocumentDetails, error) {
	if m.chain == nil {
		return nil, ErrWalletNotConnected
	}
	digest, err := types.ParseHash(hash)
	if err != nil {
		return nil, err
	}
	record, err := m.chain.Document(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", digest.Hex(), err)
	}
	if !record.Registered() {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, digest.Hex())
	}
	return &DocumentDetails{
		Hash:        digest.Hex(),
		Submitter:   record.Submitter,
		Timestamp:   record.Timestamp,
		Meta:        record.Meta,
		ExplorerURL: chains.ExplorerAddressURL(m.chain.ChainID(), record.Submitter),
	}, nil
}

// Chain returns the registry the manager submits to, nil when none is connected
func (m *Manager) Chain() blockchain.Registry {
	return m.chain
}

// Close stops every local watch and waits for background work to finish.
// Records still confirming are left as they are so they can be resumed later.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) persist(tx Transaction) {
	if m.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.journal.Save(ctx, tx); err != nil {
		m.logger.Printf("Failed to journal notarization %s: %v", tx.ID, err)
	}
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.txs {
		if m.txs[i].ID == id {
			return i
		}
	}
	return -1
}

// timestampLocked returns a creation time that never goes backwards
func (m *Manager) timestampLocked() int64 {
	now := m.now().UnixMilli()
	if now < m.lastTime {
		now = m.lastTime
	}
	m.lastTime = now
	return now
}

func (m *Manager) newIDLocked(now int64, hash string) string {
	base := fmt.Sprintf("%d-%s", now, hash[:8])
	id := base
	for n := 2; m.indexLocked(id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// broadcast wakes Wait callers once observers have seen the change
func (m *Manager) broadcast() {
	m.mu.Lock()
	m.broadcastLocked()
	m.mu.Unlock()
}

func (m *Manager) broadcastLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}
