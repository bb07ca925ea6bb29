package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katembo/kanisa/core/attendance"
	"github.com/katembo/kanisa/core/member"
)

func Test_attendanceApi_checkIn(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "QR1234", "Jean Mwamba", false)
	sess := env.createSession(t, "Sunday Service", "11:00")

	body := []byte(`{"member_code": "QR1234", "session_id": "` + sess.ID + `"}`)
	rec := env.do(http.MethodPost, "/v1/attendance/check-in", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result attendance.CheckInResult
	decodeObj(t, rec, &result)
	assert.True(t, result.Created)
	assert.Equal(t, attendance.StatusPresent, result.Attendance.Status)
	assert.Equal(t, "QR1234", result.Member.Code)

	// scanning twice is fine
	rec = env.do(http.MethodPost, "/v1/attendance/check-in", body)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeObj(t, rec, &result)
	assert.False(t, result.Created)

	rec = env.do(http.MethodPost, "/v1/attendance/check-in",
		[]byte(`{"member_code": "NOPE", "session_id": "`+sess.ID+`"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: member.ErrNotFound.Error()}),
	}, rec)

	rec = env.do(http.MethodPost, "/v1/attendance/check-in", []byte(`{"session_id": "`+sess.ID+`"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"member_code": "this field is required"}`),
	}, rec)
}

func Test_attendanceApi_checkIn_visitor(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "VIS001", "Visiting Friend", true)
	sess := env.createSession(t, "Sunday Service", "11:00")

	rec := env.do(http.MethodPost, "/v1/attendance/check-in",
		[]byte(`{"member_code": "VIS001", "session_id": "`+sess.ID+`"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: member.ErrVisitorNotTracked.Error()}),
	}, rec)
}

func Test_attendanceApi_record(t *testing.T) {
	env := setupServer(t)
	mbr := env.createMember(t, "REC001", "Grace Ilunga", false)
	sess := env.createSession(t, "Bible Study", "20:00")

	body := []byte(`{"member_id": "` + mbr.ID + `", "session_id": "` + sess.ID + `", "status": "late"}`)
	rec := env.do(http.MethodPost, "/v1/attendance/records", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var att attendance.Attendance
	decodeObj(t, rec, &att)
	assert.Equal(t, attendance.StatusLate, att.Status)

	rec = env.do(http.MethodPost, "/v1/attendance/records", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/v1/attendance/records",
		[]byte(`{"member_id": "`+mbr.ID+`", "session_id": "`+sess.ID+`", "status": "excused"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"status": "status must be one of [present absent late]"}`),
	}, rec)
}

func Test_attendanceApi_closeSession(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "CLS001", "Jean Mwamba", false)
	env.createMember(t, "CLS002", "Grace Ilunga", false)
	sess := env.createSession(t, "Sunday Service", "11:00")

	rec := env.do(http.MethodPost, "/v1/attendance/check-in",
		[]byte(`{"member_code": "CLS001", "session_id": "`+sess.ID+`"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/close")
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"absences_marked": 1}`),
	}, rec)

	rec = env.do(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/close")
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"absences_marked": 0}`),
	}, rec)
}

func Test_attendanceApi_sessionTotals(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "TOT001", "Jean Mwamba", false)
	env.createMember(t, "TOT002", "Grace Ilunga", false)
	sess := env.createSession(t, "Sunday Service", "11:00")

	rec := env.do(http.MethodPost, "/v1/attendance/check-in",
		[]byte(`{"member_code": "TOT001", "session_id": "`+sess.ID+`"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(http.MethodPost, "/v1/attendance/sessions/"+sess.ID+"/close")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/v1/attendance/sessions/"+sess.ID+"/totals")
	require.Equal(t, http.StatusOK, rec.Code)

	var totals attendance.SessionTotals
	decodeObj(t, rec, &totals)
	assert.Equal(t, 1, totals.Present)
	assert.Equal(t, 1, totals.Absent)
	assert.Equal(t, 0, totals.Late)

	rec = env.do(http.MethodGet, "/v1/attendance/sessions/"+sess.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Attendance
	decodeObj(t, rec, &records)
	assert.Len(t, records, 2)
}

func Test_attendanceApi_memberStats(t *testing.T) {
	env := setupServer(t)
	mbr := env.createMember(t, "STA001", "Jean Mwamba", false)
	s1 := env.createSession(t, "Sunday Service", "11:00")
	s2 := env.createSession(t, "Bible Study", "20:00")

	rec := env.do(http.MethodPost, "/v1/attendance/check-in",
		[]byte(`{"member_code": "STA001", "session_id": "`+s1.ID+`"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(http.MethodPost, "/v1/attendance/records",
		[]byte(`{"member_id": "`+mbr.ID+`", "session_id": "`+s2.ID+`", "status": "absent"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/v1/attendance/members/"+mbr.ID+"/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats attendance.MemberStats
	decodeObj(t, rec, &stats)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.Attended)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, 50.0, stats.AttendancePercentage)

	rec = env.do(http.MethodGet, "/v1/attendance/members/"+mbr.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Attendance
	decodeObj(t, rec, &records)
	assert.Len(t, records, 2)
}

func Test_attendanceApi_diagnostics(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "DIA001", "Jean Mwamba", false)
	sess := env.createSession(t, "Sunday Service", "11:00")

	rec := env.do(http.MethodPost, "/v1/attendance/check-in",
		[]byte(`{"member_code": "DIA001", "session_id": "`+sess.ID+`"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/v1/attendance/diagnostics")
	require.Equal(t, http.StatusOK, rec.Code)

	var diag attendance.Diagnostics
	decodeObj(t, rec, &diag)
	assert.Equal(t, 1, diag.TotalRecords)
	assert.Equal(t, 0, diag.AutoMarked)
	assert.Contains(t, diag.UnresolvedAlerts, member.AlertEarlyWarning)
}
