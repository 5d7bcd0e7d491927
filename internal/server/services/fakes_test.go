package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/logging"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
	pollsrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/polls"
	refreshtokensrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/users"
	votesrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/votes"
)

// valid RFC 4122 ids shared by the service tests
const (
	pollID      = "33333333-3333-4333-8333-333333333333"
	voterID     = "44444444-4444-4444-8444-444444444444"
	otherUserID = "55555555-5555-4555-9555-555555555555"
	optPizza    = "11111111-1111-4111-8111-111111111111"
	optSushi    = "22222222-2222-4222-9222-222222222222"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (nopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (n nopLogger) With(args ...any) logging.Logger                  { return n }

// --- fake repositories ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	delErr error

	createErr error
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	return f.createErr
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	return f.delErr
}

type fakePollsRepo struct {
	createOut *models.Poll
	createErr error

	createdOptionTexts []string
	createOptionsErr   error

	getByIDOut *models.Poll
	getByIDErr error

	getWithOptionsOut *models.PollWithOptions
	getWithOptionsErr error

	findOut []*models.PollWithOptions
	findErr error

	lastFilter models.PollFilter
	lastPage   models.Page

	updateOut *models.Poll
	updateErr error

	updateActiveErr error
	lastActiveFlag  bool

	deleteCalls int
	deleteErr   error

	isOwnerOut bool
	isOwnerErr error

	recordViewErr   error
	recordViewCalls int
}

func (f *fakePollsRepo) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	poll.ID = pollID
	return poll, nil
}

func (f *fakePollsRepo) CreateOptions(ctx context.Context, pollID string, texts []string) ([]models.PollOption, error) {
	if f.createOptionsErr != nil {
		return nil, f.createOptionsErr
	}
	f.createdOptionTexts = texts
	options := make([]models.PollOption, 0, len(texts))
	for i, text := range texts {
		options = append(options, models.PollOption{ID: text, PollID: pollID, Text: text, Position: i})
	}
	return options, nil
}

func (f *fakePollsRepo) GetByID(ctx context.Context, id string) (*models.Poll, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	return f.getByIDOut, nil
}

func (f *fakePollsRepo) GetWithOptions(ctx context.Context, id string) (*models.PollWithOptions, error) {
	if f.getWithOptionsErr != nil {
		return nil, f.getWithOptionsErr
	}
	return f.getWithOptionsOut, nil
}

func (f *fakePollsRepo) FindByOwner(ctx context.Context, ownerID string, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error) {
	f.lastFilter, f.lastPage = filter, page
	return f.findOut, f.findErr
}

func (f *fakePollsRepo) FindActive(ctx context.Context, filter models.PollFilter, page models.Page) ([]*models.PollWithOptions, error) {
	f.lastFilter, f.lastPage = filter, page
	return f.findOut, f.findErr
}

func (f *fakePollsRepo) Update(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateOut != nil {
		return f.updateOut, nil
	}
	return poll, nil
}

func (f *fakePollsRepo) UpdateActiveFlag(ctx context.Context, id string, isActive bool) error {
	f.lastActiveFlag = isActive
	return f.updateActiveErr
}

func (f *fakePollsRepo) Delete(ctx context.Context, id string) error {
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakePollsRepo) IsOwner(ctx context.Context, id string, userID string) (bool, error) {
	if f.isOwnerErr != nil {
		return false, f.isOwnerErr
	}
	return f.isOwnerOut, nil
}

func (f *fakePollsRepo) RecordView(ctx context.Context, pollID string, viewerID *string) error {
	f.recordViewCalls++
	return f.recordViewErr
}

// memVotesRepo is an in-memory vote store so replacement semantics can be
// asserted across calls.
type memVotesRepo struct {
	rows []*models.Vote

	insertErr error
	deleteErr error

	insertCalls int
	deleteCalls int

	uniqueVoters int64
}

func (m *memVotesRepo) InsertMany(ctx context.Context, votes []*models.Vote) error {
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows = append(m.rows, votes...)
	return nil
}

func (m *memVotesRepo) DeleteByPollAndVoter(ctx context.Context, pollID string, voterID string) error {
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	kept := m.rows[:0]
	for _, v := range m.rows {
		if v.PollID == pollID && v.VoterID != nil && *v.VoterID == voterID {
			continue
		}
		kept = append(kept, v)
	}
	m.rows = kept
	return nil
}

func (m *memVotesRepo) GetVoterOptionIDs(ctx context.Context, pollID string, voterID string) ([]string, error) {
	var ids []string
	for _, v := range m.rows {
		if v.PollID == pollID && v.VoterID != nil && *v.VoterID == voterID {
			ids = append(ids, v.OptionID)
		}
	}
	return ids, nil
}

func (m *memVotesRepo) FindByVoter(ctx context.Context, voterID string) ([]*models.Vote, error) {
	var out []*models.Vote
	for _, v := range m.rows {
		if v.VoterID != nil && *v.VoterID == voterID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVotesRepo) HasVoted(ctx context.Context, pollID string, voterID string) (bool, error) {
	ids, _ := m.GetVoterOptionIDs(ctx, pollID, voterID)
	return len(ids) > 0, nil
}

func (m *memVotesRepo) CountForPoll(ctx context.Context, pollID string) (int64, error) {
	var n int64
	for _, v := range m.rows {
		if v.PollID == pollID {
			n++
		}
	}
	return n, nil
}

func (m *memVotesRepo) UniqueVoterCount(ctx context.Context, pollID string) (int64, error) {
	if m.uniqueVoters != 0 {
		return m.uniqueVoters, nil
	}
	voters := map[string]struct{}{}
	for _, v := range m.rows {
		if v.PollID == pollID && v.VoterID != nil {
			voters[*v.VoterID] = struct{}{}
		}
	}
	return int64(len(voters)), nil
}

func (m *memVotesRepo) OptionIDsForPoll(ctx context.Context, pollID string) ([]string, error) {
	var ids []string
	for _, v := range m.rows {
		if v.PollID == pollID {
			ids = append(ids, v.OptionID)
		}
	}
	return ids, nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	r  *fakeRefreshRepo
	p  *fakePollsRepo
	vt *memVotesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Polls(db dbx.DBTX) pollsrepo.Repository                 { return m.p }
func (m *fakeRepoManager) Votes(db dbx.DBTX) votesrepo.Repository                 { return m.vt }
