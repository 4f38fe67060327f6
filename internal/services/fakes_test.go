package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/clients/messagingsvc"
	"github.com/tradepost/composite-backend/internal/clients/remote"
	"github.com/tradepost/composite-backend/internal/clients/transactionsvc"
	"github.com/tradepost/composite-backend/internal/clients/usersvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/requestdata"
	"github.com/tradepost/composite-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func authedContext(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		TokenString: "test-token",
		UserID:      userID,
	})
}

func remoteUnavailable() error {
	return &remote.Error{Kind: remote.KindUnavailable, Status: 503, Detail: "down"}
}

func remoteNotFound() error {
	return &remote.Error{Kind: remote.KindNotFound, Status: 404}
}

func remoteValidation(detail string) error {
	return &remote.Error{Kind: remote.KindValidation, Status: 422, Detail: detail}
}

// --- relation store fakes ---

type fakeItemOwnerRepo struct {
	mu          sync.Mutex
	owners      map[uuid.UUID]uuid.UUID
	createCalls int
	createErr   error
}

func newFakeItemOwnerRepo() *fakeItemOwnerRepo {
	return &fakeItemOwnerRepo{owners: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeItemOwnerRepo) Create(ctx context.Context, tx *gorm.DB, itemID, userID uuid.UUID) (*types.ItemOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.owners[itemID]; ok {
		return nil, fmt.Errorf("UNIQUE constraint failed: item_owner.item_id")
	}
	f.owners[itemID] = userID
	return &types.ItemOwner{ID: uuid.New(), ItemID: itemID, UserID: userID}, nil
}

func (f *fakeItemOwnerRepo) GetOwner(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[itemID]
	if !ok {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return owner, nil
}

func (f *fakeItemOwnerRepo) GetOwnersBatch(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uuid.UUID]uuid.UUID{}
	for _, id := range itemIDs {
		if owner, ok := f.owners[id]; ok {
			out[id] = owner
		}
	}
	return out, nil
}

func (f *fakeItemOwnerRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skip, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for itemID, owner := range f.owners {
		if owner == userID {
			ids = append(ids, itemID)
		}
	}
	return ids, nil
}

func (f *fakeItemOwnerRepo) VerifyOwnership(ctx context.Context, tx *gorm.DB, itemID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[itemID] == userID, nil
}

func (f *fakeItemOwnerRepo) Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.owners[itemID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.owners, itemID)
	return nil
}

type fakeAddressOwnerRepo struct {
	mu        sync.Mutex
	owners    map[uuid.UUID]uuid.UUID
	createErr error
}

func newFakeAddressOwnerRepo() *fakeAddressOwnerRepo {
	return &fakeAddressOwnerRepo{owners: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeAddressOwnerRepo) Create(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (*types.AddressOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.owners[addressID]; ok {
		return nil, fmt.Errorf("UNIQUE constraint failed: address_owner.address_id")
	}
	f.owners[addressID] = userID
	return &types.AddressOwner{ID: uuid.New(), AddressID: addressID, UserID: userID}, nil
}

func (f *fakeAddressOwnerRepo) GetOwner(ctx context.Context, tx *gorm.DB, addressID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[addressID]
	if !ok {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return owner, nil
}

func (f *fakeAddressOwnerRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for addressID, owner := range f.owners {
		if owner == userID {
			ids = append(ids, addressID)
		}
	}
	return ids, nil
}

func (f *fakeAddressOwnerRepo) VerifyOwnership(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[addressID] == userID, nil
}

func (f *fakeAddressOwnerRepo) Delete(ctx context.Context, tx *gorm.DB, addressID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.owners[addressID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.owners, addressID)
	return nil
}

type fakeParticipantRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.TransactionParticipant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{rows: map[uuid.UUID]*types.TransactionParticipant{}}
}

func (f *fakeParticipantRepo) Create(ctx context.Context, tx *gorm.DB, row *types.TransactionParticipant) (*types.TransactionParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[row.TransactionID]; ok {
		return nil, fmt.Errorf("UNIQUE constraint failed: transaction_participant.transaction_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.rows[row.TransactionID] = row
	return row, nil
}

func (f *fakeParticipantRepo) GetByTransactionID(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) (*types.TransactionParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[transactionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeParticipantRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, itemID *uuid.UUID, skip, limit int) ([]*types.TransactionParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.TransactionParticipant
	for _, row := range f.rows {
		if row.InitiatorUserID != userID && row.ReceiverUserID != userID {
			continue
		}
		if itemID != nil && row.RequestedItemID != *itemID &&
			(row.OfferedItemID == nil || *row.OfferedItemID != *itemID) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeParticipantRepo) Delete(ctx context.Context, tx *gorm.DB, transactionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[transactionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.rows, transactionID)
	return nil
}

type fakeThreadMemberRepo struct {
	mu      sync.Mutex
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeThreadMemberRepo() *fakeThreadMemberRepo {
	return &fakeThreadMemberRepo{members: map[uuid.UUID]map[uuid.UUID]bool{}}
}

func (f *fakeThreadMemberRepo) Create(ctx context.Context, tx *gorm.DB, threadID, userID uuid.UUID) (*types.ThreadMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[threadID] == nil {
		f.members[threadID] = map[uuid.UUID]bool{}
	}
	if f.members[threadID][userID] {
		return nil, fmt.Errorf("UNIQUE constraint failed: thread_member.thread_id")
	}
	f.members[threadID][userID] = true
	return &types.ThreadMember{ID: uuid.New(), ThreadID: threadID, UserID: userID}, nil
}

func (f *fakeThreadMemberRepo) IsMember(ctx context.Context, tx *gorm.DB, threadID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[threadID][userID], nil
}

func (f *fakeThreadMemberRepo) ListMembers(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for userID := range f.members[threadID] {
		ids = append(ids, userID)
	}
	return ids, nil
}

func (f *fakeThreadMemberRepo) ListThreadsForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for threadID, users := range f.members {
		if users[userID] {
			ids = append(ids, threadID)
		}
	}
	return ids, nil
}

type fakeJobSubmissionRepo struct {
	mu         sync.Mutex
	submitters map[uuid.UUID]uuid.UUID
	createErr  error
}

func newFakeJobSubmissionRepo() *fakeJobSubmissionRepo {
	return &fakeJobSubmissionRepo{submitters: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeJobSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, jobID, userID uuid.UUID) (*types.JobSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.submitters[jobID]; ok {
		return nil, fmt.Errorf("UNIQUE constraint failed: job_submission.job_id")
	}
	f.submitters[jobID] = userID
	return &types.JobSubmission{ID: uuid.New(), JobID: jobID, UserID: userID}, nil
}

func (f *fakeJobSubmissionRepo) GetSubmitter(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.submitters[jobID]
	if !ok {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return userID, nil
}

// --- remote client fakes ---

type fakeItemClient struct {
	mu          sync.Mutex
	items       map[uuid.UUID]itemsvc.ItemRead
	job         *itemsvc.JobRead
	jobErr      error
	categories  []string
	getCalls    int
	updateCalls int
	deleteErr   error
}

func newFakeItemClient() *fakeItemClient {
	return &fakeItemClient{items: map[uuid.UUID]itemsvc.ItemRead{}}
}

func (f *fakeItemClient) addItem(addressID *uuid.UUID) itemsvc.ItemRead {
	item := itemsvc.ItemRead{
		ItemID:          uuid.New(),
		Title:           "bike",
		Condition:       itemsvc.ConditionGood,
		TransactionType: itemsvc.TransactionSale,
		Price:           25,
		AddressID:       addressID,
		CreatedAt:       time.Now().Add(-time.Hour),
		UpdatedAt:       time.Now().Add(-time.Minute),
	}
	f.mu.Lock()
	f.items[item.ItemID] = item
	f.mu.Unlock()
	return item
}

func (f *fakeItemClient) List(ctx context.Context, skip, limit int) ([]itemsvc.ItemRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []itemsvc.ItemRead
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeItemClient) Get(ctx context.Context, itemID uuid.UUID) (*itemsvc.ItemRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	item, ok := f.items[itemID]
	if !ok {
		return nil, remoteNotFound()
	}
	return &item, nil
}

func (f *fakeItemClient) GetBatch(ctx context.Context, itemIDs []uuid.UUID) ([]itemsvc.ItemRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []itemsvc.ItemRead
	for _, id := range itemIDs {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeItemClient) Create(ctx context.Context, body itemsvc.ItemCreate) (*itemsvc.JobRead, error) {
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	return f.job, nil
}

func (f *fakeItemClient) GetJob(ctx context.Context, jobID uuid.UUID) (*itemsvc.JobRead, error) {
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	if f.job == nil {
		return nil, remoteNotFound()
	}
	return f.job, nil
}

func (f *fakeItemClient) Update(ctx context.Context, itemID uuid.UUID, body itemsvc.ItemUpdate) (*itemsvc.ItemRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	item, ok := f.items[itemID]
	if !ok {
		return nil, remoteNotFound()
	}
	if body.Title != nil {
		item.Title = *body.Title
	}
	item.UpdatedAt = time.Now()
	f.items[itemID] = item
	return &item, nil
}

func (f *fakeItemClient) Delete(ctx context.Context, itemID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemID)
	return nil
}

func (f *fakeItemClient) Categories(ctx context.Context) ([]string, error) {
	return f.categories, nil
}

type fakeUserClient struct {
	mu         sync.Mutex
	users      map[uuid.UUID]usersvc.UserRead
	addresses  map[uuid.UUID]usersvc.AddressRead
	userErr    error
	addressErr error
}

func newFakeUserClient() *fakeUserClient {
	return &fakeUserClient{
		users:     map[uuid.UUID]usersvc.UserRead{},
		addresses: map[uuid.UUID]usersvc.AddressRead{},
	}
}

func (f *fakeUserClient) addUser() usersvc.UserRead {
	user := usersvc.UserRead{ID: uuid.New(), Name: "ada", Email: "ada@example.com"}
	f.mu.Lock()
	f.users[user.ID] = user
	f.mu.Unlock()
	return user
}

func (f *fakeUserClient) addAddress() usersvc.AddressRead {
	address := usersvc.AddressRead{ID: uuid.New(), Street: "1 Main St", City: "Springfield", Country: "US"}
	f.mu.Lock()
	f.addresses[address.ID] = address
	f.mu.Unlock()
	return address
}

func (f *fakeUserClient) GetUser(ctx context.Context, userID uuid.UUID) (*usersvc.UserRead, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, remoteNotFound()
	}
	return &user, nil
}

func (f *fakeUserClient) GetAddress(ctx context.Context, addressID uuid.UUID) (*usersvc.AddressRead, error) {
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	address, ok := f.addresses[addressID]
	if !ok {
		return nil, remoteNotFound()
	}
	return &address, nil
}

func (f *fakeUserClient) CreateAddress(ctx context.Context, body usersvc.AddressCreate) (*usersvc.AddressRead, error) {
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	address := usersvc.AddressRead{
		ID:      uuid.New(),
		Street:  body.Street,
		City:    body.City,
		Country: body.Country,
	}
	f.mu.Lock()
	f.addresses[address.ID] = address
	f.mu.Unlock()
	return &address, nil
}

func (f *fakeUserClient) UpdateAddress(ctx context.Context, addressID uuid.UUID, body usersvc.AddressUpdate) (*usersvc.AddressRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	address, ok := f.addresses[addressID]
	if !ok {
		return nil, remoteNotFound()
	}
	if body.Street != nil {
		address.Street = *body.Street
	}
	f.addresses[addressID] = address
	return &address, nil
}

func (f *fakeUserClient) DeleteAddress(ctx context.Context, addressID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.addresses, addressID)
	return nil
}

type fakeTransactionClient struct {
	mu            sync.Mutex
	txns          map[uuid.UUID]transactionsvc.TransactionRead
	byIdemKey     map[string]uuid.UUID
	createErr     error
	listCalls     int
	lastListSkip  int
	lastListLimit int
	listResult    []transactionsvc.TransactionRead
	listAll       bool
}

func newFakeTransactionClient() *fakeTransactionClient {
	return &fakeTransactionClient{
		txns:      map[uuid.UUID]transactionsvc.TransactionRead{},
		byIdemKey: map[string]uuid.UUID{},
		listAll:   true,
	}
}

func (f *fakeTransactionClient) List(ctx context.Context, skip, limit int) ([]transactionsvc.TransactionRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastListSkip, f.lastListLimit = skip, limit
	if !f.listAll {
		return f.listResult, nil
	}
	var out []transactionsvc.TransactionRead
	for _, txn := range f.txns {
		out = append(out, txn)
	}
	return out, nil
}

func (f *fakeTransactionClient) Get(ctx context.Context, transactionID uuid.UUID) (*transactionsvc.TransactionRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[transactionID]
	if !ok {
		return nil, remoteNotFound()
	}
	return &txn, nil
}

// Create mimics the ledger's idempotency-key dedup: a replayed key returns
// the original transaction.
func (f *fakeTransactionClient) Create(ctx context.Context, body transactionsvc.TransactionCreate, idempotencyKey string) (*transactionsvc.TransactionRead, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if idempotencyKey != "" {
		if id, ok := f.byIdemKey[idempotencyKey]; ok {
			txn := f.txns[id]
			return &txn, nil
		}
	}
	txn := transactionsvc.TransactionRead{
		TransactionID:   uuid.New(),
		RequestedItemID: body.RequestedItemID,
		InitiatorUserID: body.InitiatorUserID,
		ReceiverUserID:  body.ReceiverUserID,
		Type:            body.Type,
		Status:          transactionsvc.StatusPending,
		OfferedItemID:   body.OfferedItemID,
		OfferedPrice:    body.OfferedPrice,
		Message:         body.Message,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	f.txns[txn.TransactionID] = txn
	if idempotencyKey != "" {
		f.byIdemKey[idempotencyKey] = txn.TransactionID
	}
	return &txn, nil
}

func (f *fakeTransactionClient) Update(ctx context.Context, transactionID uuid.UUID, body transactionsvc.TransactionUpdate) (*transactionsvc.TransactionRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[transactionID]
	if !ok {
		return nil, remoteNotFound()
	}
	if body.Status != nil {
		txn.Status = *body.Status
	}
	txn.UpdatedAt = time.Now()
	f.txns[transactionID] = txn
	return &txn, nil
}

func (f *fakeTransactionClient) Delete(ctx context.Context, transactionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.txns, transactionID)
	return nil
}

type fakeMessagingClient struct {
	mu        sync.Mutex
	threads   map[uuid.UUID]messagingsvc.ThreadRead
	messages  map[uuid.UUID][]messagingsvc.MessageRead
	createErr error
}

func newFakeMessagingClient() *fakeMessagingClient {
	return &fakeMessagingClient{
		threads:  map[uuid.UUID]messagingsvc.ThreadRead{},
		messages: map[uuid.UUID][]messagingsvc.MessageRead{},
	}
}

func (f *fakeMessagingClient) CreateThread(ctx context.Context, body messagingsvc.ThreadCreate) (*messagingsvc.ThreadRead, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	thread := messagingsvc.ThreadRead{
		ThreadID:      uuid.New(),
		AuthorID:      body.AuthorID,
		ParticipantID: body.ParticipantID,
		CreatedAt:     time.Now(),
	}
	f.mu.Lock()
	f.threads[thread.ThreadID] = thread
	f.mu.Unlock()
	return &thread, nil
}

func (f *fakeMessagingClient) GetThread(ctx context.Context, threadID uuid.UUID) (*messagingsvc.ThreadRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadID]
	if !ok {
		return nil, remoteNotFound()
	}
	return &thread, nil
}

func (f *fakeMessagingClient) SendMessage(ctx context.Context, threadID uuid.UUID, body messagingsvc.MessageCreate) (*messagingsvc.MessageRead, error) {
	msg := messagingsvc.MessageRead{
		MessageID: uuid.New(),
		ThreadID:  threadID,
		SenderID:  body.SenderID,
		Content:   body.Content,
		CreatedAt: time.Now(),
	}
	f.mu.Lock()
	f.messages[threadID] = append(f.messages[threadID], msg)
	f.mu.Unlock()
	return &msg, nil
}

func (f *fakeMessagingClient) GetMessages(ctx context.Context, threadID uuid.UUID) ([]messagingsvc.MessageRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[threadID], nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCache) Close() error { return nil }
