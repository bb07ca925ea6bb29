package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katembo/kanisa/core/member"
)

func Test_memberApi_create(t *testing.T) {
	env := setupServer(t)

	rec := env.do(http.MethodPost, "/v1/members", []byte(`{"full_name": "Jean Mwamba", "department": "worship"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	var mbr member.Member
	decodeObj(t, rec, &mbr)
	assert.NotEmpty(t, mbr.ID)
	assert.Len(t, mbr.Code, 8) // auto-generated
	assert.Equal(t, "Jean Mwamba", mbr.FullName)
	assert.Equal(t, member.DeptWorship, mbr.Department)
	assert.Equal(t, member.StatusActive, mbr.AttendanceStatus)
	assert.Equal(t, 100, mbr.EngagementScore)

	tests := []httpTest{
		{
			name:     "name is required",
			method:   http.MethodPost,
			path:     "/v1/members",
			body:     []byte(`{"department": "worship"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"full_name": "this field is required"}`),
		},
		{
			name:     "department must be known",
			method:   http.MethodPost,
			path:     "/v1/members",
			body:     []byte(`{"full_name": "Jean", "department": "choir"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"department": "department must be one of [worship outreach youth administration]"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.do(tt.method, tt.path, tt.body))
		})
	}
}

func Test_memberApi_create_duplicateCode(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "ABC123", "Jean Mwamba", false)

	rec := env.do(http.MethodPost, "/v1/members", []byte(`{"full_name": "Grace Ilunga", "code": "ABC123"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"code": "a member with this code already exists"}`),
	}, rec)
}

func Test_memberApi_retrieve(t *testing.T) {
	env := setupServer(t)
	mbr := env.createMember(t, "ABC123", "Jean Mwamba", false)

	rec := env.do(http.MethodGet, "/v1/members/"+mbr.ID)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, mbr)}, rec)

	rec = env.do(http.MethodGet, "/v1/members/nope")
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: member.ErrNotFound.Error()}),
	}, rec)
}

func Test_memberApi_query(t *testing.T) {
	env := setupServer(t)

	rec := env.do(http.MethodGet, "/v1/members")
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)

	env.createMember(t, "ABC123", "Jean Mwamba", false)
	env.createMember(t, "DEF456", "Grace Ilunga", false)

	var members []member.Member
	rec = env.do(http.MethodGet, "/v1/members")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeObj(t, rec, &members)
	assert.Len(t, members, 2)

	rec = env.do(http.MethodGet, "/v1/members?search=grace")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeObj(t, rec, &members)
	require.Len(t, members, 1)
	assert.Equal(t, "Grace Ilunga", members[0].FullName)
}

func Test_memberApi_update(t *testing.T) {
	env := setupServer(t)
	mbr := env.createMember(t, "ABC123", "Jean Mwamba", false)

	rec := env.do(http.MethodPut, "/v1/members/"+mbr.ID, []byte(`{"phone": "+243812345678", "pastoral_notes": "prefers evening visits"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated member.Member
	decodeObj(t, rec, &updated)
	assert.Equal(t, "Jean Mwamba", updated.FullName) // kept
	assert.Equal(t, "+243812345678", updated.Phone)
	assert.Equal(t, "prefers evening visits", updated.PastoralNotes)
}

func Test_memberApi_destroy(t *testing.T) {
	env := setupServer(t)
	mbr := env.createMember(t, "ABC123", "Jean Mwamba", false)

	rec := env.do(http.MethodDelete, "/v1/members/"+mbr.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/v1/members/"+mbr.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_memberApi_logContact(t *testing.T) {
	env := setupServer(t)
	mbr := env.createMember(t, "ABC123", "Jean Mwamba", false)

	rec := env.do(http.MethodPost, "/v1/members/"+mbr.ID+"/contacts",
		[]byte(`{"method": "phone", "message_sent": "checked in after two missed services"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	var cl member.ContactLog
	decodeObj(t, rec, &cl)
	assert.Equal(t, mbr.ID, cl.MemberID)
	assert.Equal(t, member.ContactPhone, cl.Method)
	assert.False(t, cl.ContactDate.IsZero())

	rec = env.do(http.MethodGet, "/v1/members/"+mbr.ID+"/contacts")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []member.ContactLog
	decodeObj(t, rec, &logs)
	assert.Len(t, logs, 1)

	// the member's last contact date moves forward
	updated, err := env.members.GetMemberByID(context.Background(), mbr.ID)
	require.NoError(t, err)
	assert.False(t, updated.LastContactDate.IsZero())

	rec = env.do(http.MethodPost, "/v1/members/"+mbr.ID+"/contacts", []byte(`{"method": "carrier_pigeon", "message_sent": "hi"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_memberApi_resolveAlert(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	mbr := env.createMember(t, "ABC123", "Jean Mwamba", false)

	mbr, err := env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)
	_, err = env.tracker.Apply(ctx, mbr, member.OutcomeAbsent)
	require.NoError(t, err)

	alerts, err := env.alerts.QueryUnresolvedAlerts(ctx, mbr.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	rec := env.do(http.MethodPost, "/v1/alerts/"+alerts[0].ID+"/resolve", []byte(`{"notes": "visited at home"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved member.Alert
	decodeObj(t, rec, &resolved)
	assert.True(t, resolved.IsResolved)
	assert.Equal(t, "visited at home", resolved.ResolutionNotes)

	rec = env.do(http.MethodPost, "/v1/alerts/nope/resolve", []byte(`{}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: member.ErrAlertNotFound.Error()}),
	}, rec)
}

func Test_memberApi_recompute(t *testing.T) {
	env := setupServer(t)
	env.createMember(t, "ABC123", "Jean Mwamba", false)

	rec := env.do(http.MethodPost, "/v1/alerts/recompute")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary member.RecomputeSummary
	decodeObj(t, rec, &summary)
	assert.Equal(t, 1, summary.MembersProcessed)
	assert.Equal(t, 0, summary.AlertsCreated)
}
