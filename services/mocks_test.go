package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"enrollment-service/catalog"
	"enrollment-service/models"
	"enrollment-service/repository"
	"enrollment-service/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errDB = errors.New("database unavailable")

// --- In-memory EnrollmentRepository ---

type memRepo struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*models.Enrollment
	markCalls  int
	findCalls  int
	createErr  error
	findErr    error
	markErr    error
	hasErr     error
	listErr    error
	beforeMark func(r *memRepo, id uuid.UUID)
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*models.Enrollment)}
}

func (r *memRepo) Create(_ context.Context, e *models.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, row := range r.rows {
		if row.ExternalSessionID == e.ExternalSessionID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *memRepo) find(match func(*models.Enrollment) bool) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, row := range r.rows {
		if match(row) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) FindBySessionID(_ context.Context, sessionID string) (*models.Enrollment, error) {
	return r.find(func(e *models.Enrollment) bool { return e.ExternalSessionID == sessionID })
}

func (r *memRepo) FindBySessionIDForIdentity(_ context.Context, sessionID, identityID string) (*models.Enrollment, error) {
	return r.find(func(e *models.Enrollment) bool {
		return e.ExternalSessionID == sessionID && e.IdentityID == identityID
	})
}

func (r *memRepo) FindByPaymentID(_ context.Context, paymentID string) (*models.Enrollment, error) {
	return r.find(func(e *models.Enrollment) bool { return e.PaymentID() == paymentID })
}

func (r *memRepo) HasCompleted(_ context.Context, identityID, productID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasErr != nil {
		return false, r.hasErr
	}
	for _, row := range r.rows {
		if row.IdentityID == identityID && row.ProductID == productID && row.Status == models.EnrollmentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) MarkCompleted(_ context.Context, id uuid.UUID, paymentID string) (bool, error) {
	if r.beforeMark != nil {
		r.beforeMark(r, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	if r.markErr != nil {
		return false, r.markErr
	}
	row, ok := r.rows[id]
	if !ok || row.Status == models.EnrollmentStatusCompleted {
		return false, nil
	}
	row.Status = models.EnrollmentStatusCompleted
	if paymentID != "" {
		pid := paymentID
		row.ExternalPaymentID = &pid
	}
	row.UpdatedAt = time.Now()
	return true, nil
}

func (r *memRepo) MarkFailed(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	if r.markErr != nil {
		return false, r.markErr
	}
	row, ok := r.rows[id]
	if !ok || row.Status != models.EnrollmentStatusPending {
		return false, nil
	}
	row.Status = models.EnrollmentStatusFailed
	row.UpdatedAt = time.Now()
	return true, nil
}

func (r *memRepo) ListCompletedByIdentity(_ context.Context, identityID string) ([]models.Enrollment, error) {
	return r.list(func(e *models.Enrollment) bool {
		return e.IdentityID == identityID && e.Status == models.EnrollmentStatusCompleted
	}, false)
}

func (r *memRepo) ListAll(_ context.Context, page, limit int, status models.EnrollmentStatus) ([]models.Enrollment, int64, error) {
	all, err := r.list(func(e *models.Enrollment) bool { return status == "" || e.Status == status }, false)
	if err != nil {
		return nil, 0, err
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.Enrollment{}, int64(len(all)), nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *memRepo) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]models.Enrollment, error) {
	out, err := r.list(func(e *models.Enrollment) bool {
		return e.Status == models.EnrollmentStatusPending && e.CreatedAt.Before(createdBefore)
	}, true)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *memRepo) list(match func(*models.Enrollment) bool, oldestFirst bool) ([]models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Enrollment
	for _, row := range r.rows {
		if match(row) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if oldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memRepo) get(sessionID string) *models.Enrollment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ExternalSessionID == sessionID {
			cp := *row
			return &cp
		}
	}
	return nil
}

func (r *memRepo) seed(e models.Enrollment) *models.Enrollment {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Currency == "" {
		e.Currency = "usd"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := e
	r.rows[e.ID] = &cp
	return &e
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- Fake PaymentGateway ---

// fakeGateway creates sessions in memory and verifies notifications with
// the real Stripe signature scheme.
type fakeGateway struct {
	mu           sync.Mutex
	createCalls  int
	lastRequest  services.CheckoutRequest
	createErr    error
	block        bool
	nextID       int
	sessions     map[string]*services.SessionStatus
	retrieveErr  error
	retrieveCall int
	parser       *services.StripeGateway
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions: make(map[string]*services.SessionStatus),
		parser:   newTestStripeGateway(),
	}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	g.mu.Lock()
	g.createCalls++
	g.lastRequest = req
	block, err := g.block, g.createErr
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("cs_test_%d", g.nextID)
	g.sessions[id] = &services.SessionStatus{SessionID: id, PaymentStatus: "unpaid", Status: "open"}
	return &services.CheckoutSession{ID: id, RedirectURL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*services.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieveCall++
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	st, ok := g.sessions[sessionID]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	cp := *st
	return &cp, nil
}

func (g *fakeGateway) ParseNotification(payload []byte, signature string) (*services.Notification, error) {
	return g.parser.ParseNotification(payload, signature)
}

func (g *fakeGateway) setSession(id, paymentStatus, status, paymentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id] = &services.SessionStatus{SessionID: id, PaymentStatus: paymentStatus, Status: status, PaymentID: paymentID}
}

// --- Recording EventPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.EnrollmentEvent
	err    error
}

func (p *recordingPublisher) PublishEnrollmentEvent(_ context.Context, event models.EnrollmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// --- In-memory NotificationDedupe ---

type memDedupe struct {
	seen map[string]bool
	err  error
}

func (d *memDedupe) Seen(_ context.Context, eventID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.seen[eventID], nil
}

func (d *memDedupe) MarkProcessed(_ context.Context, eventID string) error {
	if d.err != nil {
		return d.err
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[eventID] = true
	return nil
}

// --- Wiring ---

type harness struct {
	repo      *memRepo
	gateway   *fakeGateway
	publisher *recordingPublisher
	checkout  services.CheckoutService
	webhook   services.WebhookService
	verifier  services.SessionVerifier
	reader    services.EnrollmentReader
	job       *services.ReconcileJob
}

func newHarness() *harness {
	return newHarnessWithDedupe(nil)
}

func testCatalog() *catalog.Catalog {
	c, err := catalog.Default("usd")
	if err != nil {
		panic(err)
	}
	return c
}

func newHarnessWithDedupe(dedupe repository.NotificationDedupe) *harness {
	logger := zap.NewNop()
	repo := newMemRepo()
	gw := newFakeGateway()
	pub := &recordingPublisher{}
	settlement := services.NewSettlement(repo, pub, nil, logger)

	return &harness{
		repo:      repo,
		gateway:   gw,
		publisher: pub,
		checkout:  services.NewCheckoutService(testCatalog(), repo, gw, time.Second, nil, logger),
		webhook:   services.NewWebhookService(gw, repo, settlement, dedupe, nil, logger),
		verifier:  services.NewSessionVerifier(repo, gw, settlement, time.Second, logger),
		reader:    services.NewEnrollmentReader(repo, logger),
		job:       services.NewReconcileJob(repo, gw, settlement, 30*time.Minute, 50, time.Second, nil, logger),
	}
}
