package store

import (
	"context"
	"eventix/src/models"
	"eventix/src/types"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Units of work are serialized by a single
// mutex and roll back by restoring a snapshot taken on entry.
type Memory struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	users        map[uuid.UUID]models.User
	events       map[uuid.UUID]models.Event
	coupons      map[uuid.UUID]models.Coupon
	vouchers     map[uuid.UUID]models.Voucher
	points       map[uuid.UUID]models.Point
	transactions map[uuid.UUID]models.Transaction
	links        map[uuid.UUID][]uuid.UUID
	tickets      []models.Ticket
}

func NewMemory() *Memory {
	return &Memory{data: &memoryData{
		users:        map[uuid.UUID]models.User{},
		events:       map[uuid.UUID]models.Event{},
		coupons:      map[uuid.UUID]models.Coupon{},
		vouchers:     map[uuid.UUID]models.Voucher{},
		points:       map[uuid.UUID]models.Point{},
		transactions: map[uuid.UUID]models.Transaction{},
		links:        map[uuid.UUID][]uuid.UUID{},
	}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memoryData) clone() *memoryData {
	links := make(map[uuid.UUID][]uuid.UUID, len(d.links))
	for k, v := range d.links {
		links[k] = append([]uuid.UUID(nil), v...)
	}
	return &memoryData{
		users:        cloneMap(d.users),
		events:       cloneMap(d.events),
		coupons:      cloneMap(d.coupons),
		vouchers:     cloneMap(d.vouchers),
		points:       cloneMap(d.points),
		transactions: cloneMap(d.transactions),
		links:        links,
		tickets:      append([]models.Ticket(nil), d.tickets...),
	}
}

func (m *Memory) RunAtomic(ctx context.Context, opts AtomicOptions, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.data.clone()
	if err := fn(&memoryTx{data: m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	return m.RunAtomic(ctx, AtomicOptions{}, fn)
}

func withID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (m *Memory) AddUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	withID(&u.ID)
	m.data.users[u.ID] = u
	return u
}

func (m *Memory) AddEvent(e models.Event) models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	withID(&e.ID)
	m.data.events[e.ID] = e
	return e
}

func (m *Memory) AddCoupon(c models.Coupon) models.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	withID(&c.ID)
	m.data.coupons[c.ID] = c
	return c
}

func (m *Memory) AddVoucher(v models.Voucher) models.Voucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	withID(&v.ID)
	m.data.vouchers[v.ID] = v
	return v
}

func (m *Memory) AddPoint(p models.Point) models.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	withID(&p.ID)
	m.data.points[p.ID] = p
	return p
}

func (m *Memory) FindPoint(id uuid.UUID) (models.Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data.points[id]
	return p, ok
}

type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) FindUser(id uuid.UUID) (*models.User, error) {
	u, ok := t.data.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (t *memoryTx) FindEvent(id uuid.UUID, forUpdate bool) (*models.Event, error) {
	e, ok := t.data.events[id]
	if !ok {
		return nil, notFound("event", id)
	}
	return &e, nil
}

func (t *memoryTx) FindCoupon(id uuid.UUID) (*models.Coupon, error) {
	c, ok := t.data.coupons[id]
	if !ok {
		return nil, notFound("coupon", id)
	}
	return &c, nil
}

func (t *memoryTx) FindVoucher(id uuid.UUID) (*models.Voucher, error) {
	v, ok := t.data.vouchers[id]
	if !ok {
		return nil, notFound("voucher", id)
	}
	return &v, nil
}

func (t *memoryTx) FindTransaction(id uuid.UUID, forUpdate bool) (*models.Transaction, error) {
	txn, ok := t.data.transactions[id]
	if !ok {
		return nil, notFound("transaction", id)
	}
	return &txn, nil
}

func (t *memoryTx) FindTicketByCode(code string) (*models.Ticket, error) {
	for _, ticket := range t.data.tickets {
		if ticket.TicketCode == code {
			found := ticket
			return &found, nil
		}
	}
	return nil, notFound("ticket", code)
}

func (t *memoryTx) ListTransactions(filter TransactionFilter) ([]models.Transaction, error) {
	var txns []models.Transaction
	for _, txn := range t.data.transactions {
		if filter.UserID != nil && txn.UserID != *filter.UserID {
			continue
		}
		if filter.EventID != nil && txn.EventID != *filter.EventID {
			continue
		}
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	if filter.Limit > 0 && len(txns) > filter.Limit {
		txns = txns[:filter.Limit]
	}
	return txns, nil
}

func sortPoints(points []models.Point) {
	sort.Slice(points, func(i, j int) bool {
		if !points[i].ExpiresAt.Equal(points[j].ExpiresAt) {
			return points[i].ExpiresAt.Before(points[j].ExpiresAt)
		}
		return points[i].ID.String() < points[j].ID.String()
	})
}

func (t *memoryTx) ListSpendablePoints(userID uuid.UUID, now time.Time) ([]models.Point, error) {
	var points []models.Point
	for _, p := range t.data.points {
		if p.UserID == userID && p.SpendableAt(now) {
			points = append(points, p)
		}
	}
	sortPoints(points)
	return points, nil
}

func (t *memoryTx) ListLinkedPoints(transactionID uuid.UUID) ([]models.Point, error) {
	var points []models.Point
	for _, pid := range t.data.links[transactionID] {
		if p, ok := t.data.points[pid]; ok {
			points = append(points, p)
		}
	}
	sortPoints(points)
	return points, nil
}

func (t *memoryTx) ListTickets(transactionID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for _, ticket := range t.data.tickets {
		if ticket.TransactionID == transactionID {
			tickets = append(tickets, ticket)
		}
	}
	return tickets, nil
}

func (t *memoryTx) listIDs(match func(models.Transaction) bool) []uuid.UUID {
	var ids []uuid.UUID
	for id, txn := range t.data.transactions {
		if match(txn) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (t *memoryTx) ListExpiredIDs(before time.Time) ([]uuid.UUID, error) {
	return t.listIDs(func(txn models.Transaction) bool {
		return txn.Status == types.TRANSACTION_PENDING_PAYMENT && txn.ExpiresAt != nil && txn.ExpiresAt.Before(before)
	}), nil
}

func (t *memoryTx) ListStaleIDs(updatedBefore time.Time) ([]uuid.UUID, error) {
	return t.listIDs(func(txn models.Transaction) bool {
		return txn.Status == types.TRANSACTION_WAITING_CONFIRMATION && txn.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (t *memoryTx) CreateTransaction(txn *models.Transaction) error {
	withID(&txn.ID)
	if _, exists := t.data.transactions[txn.ID]; exists {
		return types.NewError(types.ERR_INVALID_STATE, "transaction %s already exists", txn.ID)
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	if txn.UpdatedAt.IsZero() {
		txn.UpdatedAt = txn.CreatedAt
	}
	stored := *txn
	stored.Points = nil
	stored.Tickets = nil
	t.data.transactions[txn.ID] = stored
	return nil
}

func (t *memoryTx) TransitionStatus(id uuid.UUID, change StatusChange) error {
	if err := change.check(id); err != nil {
		return err
	}
	txn, ok := t.data.transactions[id]
	if !ok || txn.Status != change.From {
		return types.NewError(types.ERR_INVALID_STATE, "transaction %s is no longer %s", id, change.From)
	}
	txn.Status = change.To
	txn.UpdatedAt = change.At
	if change.PaymentProof != nil {
		proof := *change.PaymentProof
		txn.PaymentProof = &proof
	}
	t.data.transactions[id] = txn
	return nil
}

func (t *memoryTx) ExpirePending(before time.Time, at time.Time) (int64, error) {
	ids, _ := t.ListExpiredIDs(before)
	for _, id := range ids {
		txn := t.data.transactions[id]
		txn.Status = types.TRANSACTION_EXPIRED
		txn.UpdatedAt = at
		t.data.transactions[id] = txn
	}
	return int64(len(ids)), nil
}

func (t *memoryTx) AdjustSeats(eventID uuid.UUID, delta int) error {
	e, ok := t.data.events[eventID]
	if !ok {
		return notFound("event", eventID)
	}
	if delta < 0 && e.RemainingSeats < -delta {
		return types.NewError(types.ERR_INSUFFICIENT_SEATS, "not enough seats left for event %s", eventID)
	}
	e.RemainingSeats = min(e.RemainingSeats+delta, e.TotalSeats)
	t.data.events[eventID] = e
	return nil
}

func (t *memoryTx) AdjustCouponUsage(id uuid.UUID, delta int) error {
	c, ok := t.data.coupons[id]
	if !ok {
		return notFound("coupon", id)
	}
	if delta > 0 && c.UseCount+delta > c.MaxUsage {
		return types.NewError(types.ERR_INVALID_OR_EXPIRED_COUPON, "coupon %s has reached its usage limit", id)
	}
	if delta < 0 && c.UseCount < -delta {
		return nil
	}
	c.UseCount += delta
	t.data.coupons[id] = c
	return nil
}

func (t *memoryTx) AdjustVoucherUsage(id uuid.UUID, delta int) error {
	v, ok := t.data.vouchers[id]
	if !ok {
		return notFound("voucher", id)
	}
	if delta > 0 && v.UsageAmount+delta > v.MaxUsage {
		return types.NewError(types.ERR_INVALID_OR_EXPIRED_VOUCHER, "voucher %s has reached its usage limit", id)
	}
	if delta < 0 && v.UsageAmount < -delta {
		return nil
	}
	v.UsageAmount += delta
	t.data.vouchers[id] = v
	return nil
}

func (t *memoryTx) SetPointsUsed(ids []uuid.UUID, used bool) error {
	for _, id := range ids {
		p, ok := t.data.points[id]
		if !ok || p.IsUsed == used {
			if used {
				return types.NewError(types.ERR_INSUFFICIENT_POINTS, "points were spent by another transaction")
			}
			continue
		}
		p.IsUsed = used
		t.data.points[id] = p
	}
	return nil
}

func (t *memoryTx) LinkPoints(transactionID uuid.UUID, pointIDs []uuid.UUID) error {
	t.data.links[transactionID] = append(t.data.links[transactionID], pointIDs...)
	return nil
}

func (t *memoryTx) CreateTicket(ticket *models.Ticket) error {
	withID(&ticket.ID)
	for _, existing := range t.data.tickets {
		if existing.TicketCode == ticket.TicketCode {
			return types.NewError(types.ERR_INVALID_STATE, "ticket code %s already issued", ticket.TicketCode)
		}
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	t.data.tickets = append(t.data.tickets, *ticket)
	return nil
}
