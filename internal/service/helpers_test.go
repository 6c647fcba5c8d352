package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/hogar/internal/crypto/phonecrypto"
	"github.com/and161185/hogar/internal/limiter"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

var testSignKey = []byte("0123456789abcdef0123456789abcdef")

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.ListEvent
}

var _ ListNotifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) NotifyListEvent(ev model.ListEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) all() []model.ListEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.ListEvent(nil), n.events...)
}

// fakeLimiter counts calls and blocks once fails reaches max.
type fakeLimiter struct {
	mu        sync.Mutex
	max       int
	fails     map[string]int
	successes int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func newFakeLimiter(max int) *fakeLimiter { return &fakeLimiter{max: max, fails: map[string]int{}} }

func (l *fakeLimiter) Allow(_ context.Context, key string, _ []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fails[key] < l.max, 0, nil
}

func (l *fakeLimiter) Success(_ context.Context, key string, _ []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fails, key)
	l.successes++
	return nil
}

func (l *fakeLimiter) Failure(_ context.Context, key string, _ []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fails[key]++
	return l.fails[key] >= l.max, time.Minute, nil
}

type env struct {
	store      *memStore
	creds      Credentials
	sessions   *SessionManagerImpl
	invites    *InvitationServiceImpl
	auth       *AuthServiceImpl
	households *HouseholdServiceImpl
	lists      *ListServiceImpl
	expenses   *ExpenseServiceImpl
	incomes    *IncomeServiceImpl
	reports    *ReportServiceImpl
	notifier   *recordingNotifier
	lim        *fakeLimiter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	phone, err := phonecrypto.New([]byte("abcdefghijklmnopqrstuvwxyz012345"))
	if err != nil {
		t.Fatalf("phone cipher: %v", err)
	}
	store := newMemStore()
	creds := Credentials{Phone: phone, BcryptCost: bcrypt.MinCost}
	sessions := NewSessionManager(store, testSignKey, 15*time.Minute, 30*time.Minute, log)
	invites := NewInvitationService(store, phone, 0, log)
	lim := newFakeLimiter(3)
	notifier := &recordingNotifier{}
	return &env{
		store:      store,
		creds:      creds,
		sessions:   sessions,
		invites:    invites,
		auth:       NewAuthService(store, creds, sessions, invites, lim, log),
		households: NewHouseholdService(store, creds, "Hogar", "cup"),
		lists:      NewListService(store, notifier),
		expenses:   NewExpenseService(store),
		incomes:    NewIncomeService(store, "CUP"),
		reports:    NewReportService(store),
		notifier:   notifier,
		lim:        lim,
	}
}

func strp(s string) *string { return &s }

// register creates an account by email and returns its result.
func (e *env) register(t *testing.T, email, name string) *AuthResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Email: strp(email), Password: "secret1", DisplayName: name,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

// household registers a user and gives them a household.
func (e *env) household(t *testing.T, email, name string) (uuid.UUID, *model.Household) {
	t.Helper()
	u := e.register(t, email, name)
	h, err := e.households.Create(context.Background(), u.User.ID, HouseholdInput{Name: strp("Casa " + name)})
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return u.User.ID, h
}

// join invites email into the inviter's household and accepts for userID.
func (e *env) join(t *testing.T, inviterID, userID uuid.UUID, email string) {
	t.Helper()
	ctx := context.Background()
	inv, err := e.invites.InviteToMine(ctx, inviterID, InviteInput{Email: strp(email)})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := e.invites.AcceptByToken(ctx, userID, inv.Token); err != nil {
		t.Fatalf("accept: %v", err)
	}
}
