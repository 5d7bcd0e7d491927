package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/pollkeeper/internal/common"
	"github.com/dmitrijs2005/pollkeeper/internal/dbx"
	"github.com/dmitrijs2005/pollkeeper/internal/logging"
	"github.com/dmitrijs2005/pollkeeper/internal/server/auth"
	"github.com/dmitrijs2005/pollkeeper/internal/server/config"
	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
	pollsrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/polls"
	"github.com/dmitrijs2005/pollkeeper/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/users"
	votesrepo "github.com/dmitrijs2005/pollkeeper/internal/server/repositories/votes"
	"github.com/dmitrijs2005/pollkeeper/internal/server/services"
)

const (
	testSecret  = "test-secret"
	testPollID  = "33333333-3333-4333-8333-333333333333"
	testUserID  = "44444444-4444-4444-8444-444444444444"
	testOptionA = "11111111-1111-4111-8111-111111111111"
	testOptionB = "22222222-2222-4222-9222-222222222222"
)

// fake repositories: embed the interface, override what each test needs

type fakePolls struct {
	pollsrepo.Repository
	withOptions *models.PollWithOptions
	err         error
}

func (f *fakePolls) GetWithOptions(ctx context.Context, id string) (*models.PollWithOptions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.withOptions, nil
}

func (f *fakePolls) RecordView(ctx context.Context, pollID string, viewerID *string) error {
	return nil
}

type fakeUsers struct {
	usersrepo.Repository
	user *models.User
	err  error
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u.ID = testUserID
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeVotes struct {
	votesrepo.Repository
	inserted []*models.Vote
}

func (f *fakeVotes) DeleteByPollAndVoter(ctx context.Context, pollID string, voterID string) error {
	return nil
}

func (f *fakeVotes) InsertMany(ctx context.Context, votes []*models.Vote) error {
	f.inserted = append(f.inserted, votes...)
	return nil
}

func (f *fakeVotes) OptionIDsForPoll(ctx context.Context, pollID string) ([]string, error) {
	var ids []string
	for _, v := range f.inserted {
		ids = append(ids, v.OptionID)
	}
	return ids, nil
}

func (f *fakeVotes) UniqueVoterCount(ctx context.Context, pollID string) (int64, error) {
	return int64(len(f.inserted)), nil
}

func (f *fakeVotes) FindByVoter(ctx context.Context, voterID string) ([]*models.Vote, error) {
	var out []*models.Vote
	for _, v := range f.inserted {
		if v.VoterID != nil && *v.VoterID == voterID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeRM struct {
	repomanager.RepositoryManager
	polls pollsrepo.Repository
	users usersrepo.Repository
	votes votesrepo.Repository
}

func (m *fakeRM) Polls(db dbx.DBTX) pollsrepo.Repository { return m.polls }
func (m *fakeRM) Users(db dbx.DBTX) usersrepo.Repository { return m.users }
func (m *fakeRM) Votes(db dbx.DBTX) votesrepo.Repository { return m.votes }

func newTestServer(t *testing.T, rm repomanager.RepositoryManager) (http.Handler, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	us := services.NewUserService(db, rm, cfg)
	ps := services.NewPollService(db, rm, logger)
	vs := services.NewVoteService(db, rm, logger)
	es := services.NewExportService(db, rm, vs, cfg)

	srv := NewHTTPServer("127.0.0.1:0", testSecret, logger, us, ps, vs, es)
	return srv.routes(), db, mock
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return "Bearer " + token
}

func votablePoll() *models.PollWithOptions {
	return &models.PollWithOptions{
		Poll: models.Poll{ID: testPollID, CreatorID: testUserID, Title: "Lunch?", IsActive: true},
		Options: []models.PollOption{
			{ID: testOptionA, PollID: testPollID, Text: "Pizza", Position: 0},
			{ID: testOptionB, PollID: testPollID, Text: "Sushi", Position: 1},
		},
	}
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetPoll_OK(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{polls: &fakePolls{withOptions: votablePoll()}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/polls/"+testPollID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var got models.PollWithOptions
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Poll.ID != testPollID || len(got.Options) != 2 {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestGetPoll_NotFound(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{polls: &fakePolls{err: common.ErrorNotFound}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/polls/"+testPollID, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetPoll_InactiveHiddenFromStrangers(t *testing.T) {
	poll := votablePoll()
	poll.Poll.IsActive = false
	h, _, _ := newTestServer(t, &fakeRM{polls: &fakePolls{withOptions: poll}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/polls/"+testPollID, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("anonymous reader: status = %d body = %s", rec.Code, rec.Body)
	}

	req := httptest.NewRequest(http.MethodGet, "/polls/"+testPollID, nil)
	req.Header.Set("Authorization", bearer(t, testUserID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("owner: status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestCreatePoll_RequiresAuth(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/polls", strings.NewReader(`{}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreatePoll_ValidationEnvelope(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{})

	req := httptest.NewRequest(http.MethodPost, "/polls", strings.NewReader(`{"title":"","options":["only one"]}`))
	req.Header.Set("Authorization", bearer(t, testUserID))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Fields["title"]) == 0 || len(body.Fields["options"]) == 0 {
		t.Fatalf("expected field messages, got %+v", body.Fields)
	}
}

func TestRegister_Created(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{users: &fakeUsers{}})

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"alice@example.com","password":"supersecret","display_name":"Alice"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var got userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != testUserID || got.Email != "alice@example.com" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestRegister_Conflict(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{users: &fakeUsers{err: common.ErrEmailTaken}})

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"alice@example.com","password":"supersecret"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{users: &fakeUsers{err: common.ErrorNotFound}})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"ghost@example.com","password":"whatever"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubmitVote_Created(t *testing.T) {
	votes := &fakeVotes{}
	h, _, mock := newTestServer(t, &fakeRM{
		polls: &fakePolls{withOptions: votablePoll()},
		votes: votes,
	})
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPost, "/polls/"+testPollID+"/vote",
		strings.NewReader(`{"option_ids":["`+testOptionA+`"]}`))
	req.Header.Set("Authorization", bearer(t, testUserID))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if len(votes.inserted) != 1 || votes.inserted[0].OptionID != testOptionA {
		t.Fatalf("unexpected inserted votes: %+v", votes.inserted)
	}
	if votes.inserted[0].IPAddress == nil || *votes.inserted[0].IPAddress != "203.0.113.7" {
		t.Fatalf("client ip not captured: %+v", votes.inserted[0])
	}
}

func TestSubmitVote_InactivePollConflict(t *testing.T) {
	poll := votablePoll()
	poll.Poll.IsActive = false
	h, _, _ := newTestServer(t, &fakeRM{polls: &fakePolls{withOptions: poll}, votes: &fakeVotes{}})

	req := httptest.NewRequest(http.MethodPost, "/polls/"+testPollID+"/vote",
		strings.NewReader(`{"option_ids":["`+testOptionA+`"]}`))
	req.Header.Set("Authorization", bearer(t, testUserID))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestGetStatistics_OK(t *testing.T) {
	votes := &fakeVotes{inserted: []*models.Vote{{PollID: testPollID, OptionID: testOptionA}}}
	h, _, _ := newTestServer(t, &fakeRM{polls: &fakePolls{withOptions: votablePoll()}, votes: votes})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/polls/"+testPollID+"/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var got models.PollStatistics
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalVotes != 1 || len(got.OptionStats) != 2 || got.OptionStats[0].Percentage != 100 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestGetMyVotes_OK(t *testing.T) {
	userID := testUserID
	votes := &fakeVotes{inserted: []*models.Vote{
		{PollID: testPollID, OptionID: testOptionA, VoterID: &userID},
		{PollID: testPollID, OptionID: testOptionB, VoterID: &userID},
	}}
	h, _, _ := newTestServer(t, &fakeRM{votes: votes})

	req := httptest.NewRequest(http.MethodGet, "/votes/me", nil)
	req.Header.Set("Authorization", bearer(t, testUserID))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var got []models.VoterPollSelection
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].PollID != testPollID || len(got[0].OptionIDs) != 2 {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func TestGetMyVotes_RequiresAuth(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{votes: &fakeVotes{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/votes/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/polls", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS headers")
	}
}

func TestBadToken_Unauthorized(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeRM{})

	req := httptest.NewRequest(http.MethodGet, "/polls/my", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5000"
	if got := clientIP(r); got != "192.0.2.1" {
		t.Fatalf("remote addr: got %q", got)
	}

	r.Header.Set("X-Real-IP", "198.51.100.2")
	if got := clientIP(r); got != "198.51.100.2" {
		t.Fatalf("x-real-ip: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.7" {
		t.Fatalf("x-forwarded-for: got %q", got)
	}
}
