package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/katembo/kanisa/core"
	"github.com/katembo/kanisa/core/attendance"
	"github.com/katembo/kanisa/core/member"
	"github.com/katembo/kanisa/core/schedule"
	emailsvc "github.com/katembo/kanisa/services/email"
	dummydb "github.com/katembo/kanisa/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

type testEnv struct {
	server  *Server
	conf    *core.Config
	members member.Repository
	alerts  member.AlertRepository
	schRepo schedule.Repository
	attRepo attendance.Repository
	tracker *member.Tracker
}

func setupServer(t *testing.T) testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setupServer() failed: %v", err)
	}
	conf := &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Kanisa",
		ChurchName:       "Test Church",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Address: "noreply@localhost"},
	}
	logger := nopLogger{}

	members := dummydb.NewMemberRepository(db)
	alerts := dummydb.NewAlertRepository(db)
	contacts := dummydb.NewContactLogRepository(db)
	schRepo := dummydb.NewScheduleRepository(db)
	attRepo := dummydb.NewAttendanceRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	tracker := member.NewTracker(members, alerts, attRepo, logger)

	server := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		MemberSvc:     member.NewService(members, alerts, contacts, mailSvc, conf, logger),
		ScheduleSvc:   schedule.NewService(schRepo, logger),
		AttendanceSvc: attendance.NewService(attRepo, members, schRepo, alerts, tracker, logger),
		Tracker:       tracker,
	})
	return testEnv{
		server:  server,
		conf:    conf,
		members: members,
		alerts:  alerts,
		schRepo: schRepo,
		attRepo: attRepo,
		tracker: tracker,
	}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func (env testEnv) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	env.server.ServeHTTP(rec, req)
	return rec
}

func (env testEnv) createMember(t *testing.T, code, name string, isVisitor bool) member.Member {
	t.Helper()
	now := time.Now().UTC()
	mbr, err := env.members.CreateMember(context.Background(), member.Member{
		Code:             code,
		FullName:         name,
		IsVisitor:        isVisitor,
		AttendanceStatus: member.StatusActive,
		EngagementScore:  100,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("createMember() failed: %v", err)
	}
	return mbr
}

func (env testEnv) createSession(t *testing.T, name, endTime string) schedule.Session {
	t.Helper()
	now := time.Now().UTC()
	s, err := env.schRepo.CreateSession(context.Background(), schedule.Session{
		Name:      name,
		Date:      schedule.DateOf(now),
		StartTime: "09:00",
		EndTime:   endTime,
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	return s
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decodeObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("decodeObj() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
