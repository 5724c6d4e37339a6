package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/middleware"
	"telehealth-server/internal/models"
	"telehealth-server/internal/repository"
	"telehealth-server/internal/services"
	"telehealth-server/internal/utils"
	"telehealth-server/internal/video"
	"telehealth-server/pkg/logging"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct{}

func (stubGateway) CreateSession(context.Context) (string, error) { return "sess-1", nil }

func (stubGateway) GenerateToken(sessionID string, _ video.TokenOptions) (string, error) {
	return "tok-" + sessionID, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    apperr.Kind     `json:"code"`
}

type testServer struct {
	router *gin.Engine
	repo   *repository.MemoryRepository
	clock  *clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		repo:  repository.NewMemoryRepository(),
		clock: &clock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
	}
	svc := services.New(services.Deps{
		Repo:    s.repo,
		Video:   stubGateway{},
		Metrics: metrics.NewBookingMetrics(prometheus.NewRegistry()),
		Logger:  logging.Discard(),
		Now:     s.clock.Now,
	})

	doctors := NewDoctorHandler(svc.Directory, svc.Booking)
	appointments := NewAppointmentHandler(svc.Booking)
	availability := NewAvailabilityHandler(svc.Availability, time.UTC)
	payouts := NewPayoutHandler(svc.Payout, svc.Ledger)

	r := gin.New()
	api := r.Group("/api/v1", middleware.AuthMiddleware(testSecret))
	api.GET("/doctors", doctors.GetDoctors)
	api.GET("/doctors/:id", doctors.GetDoctorByID)
	api.GET("/doctors/:id/slots", doctors.GetAvailableSlots)
	api.POST("/appointments", appointments.CreateAppointment)
	api.GET("/appointments", appointments.GetAppointmentsForUser)
	api.POST("/appointments/:id/token", appointments.GenerateVideoToken)
	api.POST("/appointments/:id/video-session", appointments.CreateVideoSession)
	api.PUT("/availability", availability.SetAvailability)
	api.GET("/availability", availability.GetAvailability)
	api.POST("/payouts", payouts.RequestPayout)
	api.GET("/payouts", payouts.GetPayouts)
	api.GET("/earnings", payouts.GetEarnings)
	api.GET("/credits", payouts.GetCredits)
	s.router = r
	return s
}

func (s *testServer) user(t *testing.T, externalID string, role models.Role, credits int64) *models.User {
	t.Helper()
	u := &models.User{
		ExternalID:         externalID,
		Name:               externalID,
		Email:              externalID + "@example.com",
		Role:               role,
		Specialty:          "Cardiology",
		VerificationStatus: models.VerificationVerified,
		Credits:            credits,
	}
	require.NoError(t, s.repo.CreateUser(context.Background(), u))
	return u
}

func (s *testServer) do(t *testing.T, method, path, subject string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		token, err := utils.GenerateToken(subject, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	doctor := s.user(t, "doc_1", models.RoleDoctor, 0)
	s.user(t, "pat_1", models.RolePatient, 4)

	status, env := s.do(t, http.MethodPut, "/api/v1/availability", "doc_1", gin.H{"startTime": "09:00", "endTime": "17:00"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(t, http.MethodGet, "/api/v1/doctors/"+doctor.ID+"/slots", "pat_1", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var slots struct {
		Days []struct {
			Date  string            `json:"date"`
			Slots []json.RawMessage `json:"slots"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &slots))
	require.NotEmpty(t, slots.Days)
	assert.Equal(t, "2026-03-02", slots.Days[0].Date)
	assert.Len(t, slots.Days[0].Slots, 16)

	booking := gin.H{
		"doctorId":  doctor.ID,
		"startTime": "2026-03-02T10:00:00Z",
		"endTime":   "2026-03-02T10:30:00Z",
	}
	status, env = s.do(t, http.MethodPost, "/api/v1/appointments", "pat_1", booking)
	require.Equal(t, http.StatusCreated, status, env.Error)
	var appt models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	require.NotNil(t, appt.VideoSessionID)
	assert.Equal(t, "sess-1", *appt.VideoSessionID)

	status, env = s.do(t, http.MethodPost, "/api/v1/appointments", "pat_1", booking)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperr.KindSlotUnavailable, env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/appointments", "doc_1", nil)
	require.Equal(t, http.StatusOK, status)
	var listed []models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Len(t, listed, 1)

	status, env = s.do(t, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/video-session", "pat_1", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Contains(t, string(env.Data), `"videoSessionId":"sess-1"`)
	assert.NotContains(t, string(env.Data), "credits")
	assert.NotContains(t, string(env.Data), "doc_1@example.com")

	tokenPath := "/api/v1/appointments/" + appt.ID + "/token"
	status, env = s.do(t, http.MethodPost, tokenPath, "pat_1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperr.KindTooEarly, env.Code)

	s.clock.Set(time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC))
	status, env = s.do(t, http.MethodPost, tokenPath, "pat_1", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var token struct {
		SessionID string `json:"videoSessionId"`
		Token     string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &token))
	assert.Equal(t, "sess-1", token.SessionID)
	assert.Equal(t, "tok-sess-1", token.Token)

	s.user(t, "pat_2", models.RolePatient, 4)
	status, env = s.do(t, http.MethodPost, tokenPath, "pat_2", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.KindUnauthorized, env.Code)
}

func TestCreateAppointment_Rejections(t *testing.T) {
	s := newTestServer(t)
	doctor := s.user(t, "doc_1", models.RoleDoctor, 0)
	s.user(t, "pat_poor", models.RolePatient, 1)

	status, env := s.do(t, http.MethodPost, "/api/v1/appointments", "pat_poor", `{"doctorId":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.KindValidation, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/appointments", "pat_poor", gin.H{"startTime": "2026-03-02T10:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "doctorId")

	status, env = s.do(t, http.MethodPost, "/api/v1/appointments", "pat_poor", gin.H{
		"doctorId":  doctor.ID,
		"startTime": "2026-03-02T10:00:00Z",
		"endTime":   "2026-03-02T10:30:00Z",
	})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, apperr.KindInsufficientCredits, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/appointments", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperr.KindNotFound, env.Code)
}

func TestAvailability(t *testing.T) {
	s := newTestServer(t)
	s.user(t, "doc_1", models.RoleDoctor, 0)
	s.user(t, "pat_1", models.RolePatient, 0)

	status, env := s.do(t, http.MethodGet, "/api/v1/availability", "doc_1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperr.KindNotConfigured, env.Code)

	status, env = s.do(t, http.MethodPut, "/api/v1/availability", "doc_1", gin.H{"startTime": "9am", "endTime": "17:00"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, http.MethodPut, "/api/v1/availability", "pat_1", gin.H{"startTime": "09:00", "endTime": "17:00"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(t, http.MethodPut, "/api/v1/availability", "doc_1", gin.H{"startTime": "09:00", "endTime": "12:00"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(t, http.MethodGet, "/api/v1/availability", "doc_1", nil)
	require.Equal(t, http.StatusOK, status)
	var a models.Availability
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, 9, a.StartTime.UTC().Hour())
	assert.Equal(t, 12, a.EndTime.UTC().Hour())
}

func TestDoctorDirectory(t *testing.T) {
	s := newTestServer(t)
	doctor := s.user(t, "doc_1", models.RoleDoctor, 0)
	patient := s.user(t, "pat_1", models.RolePatient, 0)

	status, env := s.do(t, http.MethodGet, "/api/v1/doctors?specialty=Cardiology", "pat_1", nil)
	require.Equal(t, http.StatusOK, status)
	var doctors []models.UserSanitized
	require.NoError(t, json.Unmarshal(env.Data, &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, doctor.ID, doctors[0].ID)
	assert.NotContains(t, string(env.Data), "credits")

	status, _ = s.do(t, http.MethodGet, "/api/v1/doctors/"+doctor.ID, "pat_1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/doctors/"+patient.ID, "pat_1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperr.KindNotFound, env.Code)
}

func TestPayoutFlow(t *testing.T) {
	s := newTestServer(t)
	doctor := s.user(t, "doc_1", models.RoleDoctor, 0)
	s.user(t, "pat_1", models.RolePatient, 2)

	status, env := s.do(t, http.MethodPost, "/api/v1/payouts", "doc_1", gin.H{"paypalEmail": "doc@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, apperr.KindNoCredits, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/appointments", "pat_1", gin.H{
		"doctorId":  doctor.ID,
		"startTime": "2026-03-02T10:00:00Z",
		"endTime":   "2026-03-02T10:30:00Z",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, http.MethodPost, "/api/v1/payouts", "doc_1", gin.H{"paypalEmail": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.KindValidation, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/payouts", "doc_1", gin.H{"paypalEmail": "doc@example.com"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var payout models.Payout
	require.NoError(t, json.Unmarshal(env.Data, &payout))
	assert.Equal(t, int64(2), payout.Credits)
	assert.Equal(t, models.PayoutProcessing, payout.Status)

	status, env = s.do(t, http.MethodPost, "/api/v1/payouts", "doc_1", gin.H{"paypalEmail": "doc@example.com"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, apperr.KindPendingPayoutExists, env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/payouts", "doc_1", nil)
	require.Equal(t, http.StatusOK, status)
	var payouts []models.Payout
	require.NoError(t, json.Unmarshal(env.Data, &payouts))
	assert.Len(t, payouts, 1)

	status, env = s.do(t, http.MethodGet, "/api/v1/earnings", "doc_1", nil)
	require.Equal(t, http.StatusOK, status)
	var summary struct {
		TotalEarned      int64 `json:"totalEarned"`
		TotalPayout      int64 `json:"totalPayout"`
		AvailableCredits int64 `json:"availableCredits"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, int64(2), summary.TotalEarned)
	assert.Equal(t, int64(2), summary.TotalPayout)
	assert.Equal(t, int64(0), summary.AvailableCredits)

	status, env = s.do(t, http.MethodGet, "/api/v1/earnings", "pat_1", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/credits", "pat_1", nil)
	require.Equal(t, http.StatusOK, status)
	var balance struct {
		Credits      int64             `json:"credits"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, int64(0), balance.Credits)
	assert.Len(t, balance.Transactions, 1)
}
