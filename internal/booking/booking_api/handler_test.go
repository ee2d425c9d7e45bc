package booking_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quarterdeck-booking/internal/auth"
	"quarterdeck-booking/internal/booking"
	"quarterdeck-booking/internal/booking/pass"
	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

type MockBookings struct {
	mock.Mock
}

func (m *MockBookings) booking(args mock.Arguments) (*models.Booking, error) {
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) FacilityAvailability(ctx context.Context, ref string, resourceID int, date, start, end string) (*models.AvailabilityResponse, error) {
	args := m.Called(ctx, ref, resourceID, date, start, end)
	a, _ := args.Get(0).(*models.AvailabilityResponse)
	return a, args.Error(1)
}

func (m *MockBookings) DaySchedule(ctx context.Context, ref, date string) ([]models.ResourceSchedule, error) {
	args := m.Called(ctx, ref, date)
	s, _ := args.Get(0).([]models.ResourceSchedule)
	return s, args.Error(1)
}

func (m *MockBookings) Quote(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.PriceBreakdown, error) {
	args := m.Called(ctx, userID, req)
	p, _ := args.Get(0).(*models.PriceBreakdown)
	return p, args.Error(1)
}

func (m *MockBookings) PlaceBooking(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.Booking, error) {
	return m.booking(m.Called(ctx, userID, req))
}

func (m *MockBookings) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *MockBookings) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, filter)
	b, _ := args.Get(0).([]models.Booking)
	return b, args.Error(1)
}

func (m *MockBookings) Cancel(ctx context.Context, id, reason string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, reason))
}

func (m *MockBookings) SubmitPaymentProof(ctx context.Context, id, reference string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, reference))
}

func (m *MockBookings) VerifyPayment(ctx context.Context, id string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *MockBookings) RejectPayment(ctx context.Context, id, reason string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, reason))
}

func (m *MockBookings) TransitionStatus(ctx context.Context, id string, to models.BookingStatus, reason string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, to, reason))
}

var (
	alice = models.Principal{Subject: "alice"}
	bob   = models.Principal{Subject: "bob"}
	staff = models.Principal{Subject: "staff-1", Roles: []string{"admin"}}
)

type testServer struct {
	svc    *MockBookings
	passes *pass.Generator
	router http.Handler
}

// newTestServer stands in for the bearer middleware by reading the caller from X-Test-User.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := new(MockBookings)
	passes, err := pass.NewGenerator("test-pass-secret")
	require.NoError(t, err)

	h := NewHandler(svc, passes, nil, logger.NewWithWriter(io.Discard), "admin")
	users := map[string]models.Principal{"alice": alice, "bob": bob, "staff-1": staff}

	r := chi.NewRouter()
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				p, ok := users[req.Header.Get("X-Test-User")]
				if !ok {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
			})
		})
		h.RegisterUser(r)
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(auth.RequireRole("admin", logger.NewWithWriter(io.Discard)))
			h.RegisterAdmin(r)
		})
	})
	return &testServer{svc: svc, passes: passes, router: r}
}

func (s *testServer) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) utils.APIResponse {
	t.Helper()
	var envelope struct {
		utils.APIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if data != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.APIResponse
}

func aliceBooking(status models.BookingStatus) *models.Booking {
	return &models.Booking{
		ID: "b-1", FacilityID: "fac-padel", ResourceID: 2, Date: "2026-11-03",
		StartTime: "10:00", EndTime: "11:00", Status: status,
		PaymentStatus: models.PaymentPending, PaymentMethod: models.PaymentBankTransfer, UserID: "alice",
	}
}

func TestAvailability(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("FacilityAvailability", mock.Anything, "padel-tennis", 2, "2026-11-03", "10:00", "11:00").
		Return(&models.AvailabilityResponse{FacilityID: "fac-padel", ResourceID: 2, Available: true}, nil)

	rec := s.do(http.MethodGet, "/api/facilities/padel-tennis/availability?resource=2&date=2026-11-03&start=10:00&end=11:00", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AvailabilityResponse
	decodeResponse(t, rec, &got)
	assert.True(t, got.Available)

	rec = s.do(http.MethodGet, "/api/facilities/padel-tennis/availability?resource=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &booking.ValidationError{Field: "date", Reason: "bad"}, http.StatusBadRequest},
		{"conflict", &booking.ConflictError{Message: "slot already booked"}, http.StatusConflict},
		{"not found", &booking.NotFoundError{Kind: "facility", ID: "x"}, http.StatusNotFound},
		{"invalid transition", &booking.InvalidTransitionError{From: "CANCELLED", To: "CONFIRMED"}, http.StatusUnprocessableEntity},
		{"wrapped conflict", fmt.Errorf("outer: %w", &booking.ConflictError{Message: "x"}), http.StatusConflict},
		{"unexpected", errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.svc.On("PlaceBooking", mock.Anything, "alice", mock.Anything).Return(nil, tt.err)

			rec := s.do(http.MethodPost, "/api/bookings", "alice", models.CreateBookingRequest{FacilityID: "padel-tennis"})

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec, nil)
			assert.False(t, resp.Success)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "db exploded")
			}
		})
	}
}

func TestCreateBooking(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("PlaceBooking", mock.Anything, "alice", mock.MatchedBy(func(r models.CreateBookingRequest) bool {
		return r.FacilityID == "padel-tennis" && r.ResourceID == 2
	})).Return(aliceBooking(models.BookingPending), nil)

	rec := s.do(http.MethodPost, "/api/bookings", "alice", models.CreateBookingRequest{FacilityID: "padel-tennis", ResourceID: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	var b models.Booking
	decodeResponse(t, rec, &b)
	assert.Equal(t, "b-1", b.ID)

	rec = s.do(http.MethodPost, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewReader([]byte(`{"facilityId":"x","surprise":1}`)))
	req.Header.Set("X-Test-User", "alice")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown fields are rejected")
}

func TestListBookingsScopesToCaller(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("ListBookings", mock.Anything, models.BookingFilter{UserID: "alice", Date: "2026-11-03", Limit: 10}).
		Return([]models.Booking{*aliceBooking(models.BookingPending)}, nil)
	s.svc.On("ListBookings", mock.Anything, models.BookingFilter{UserID: "bob", Status: models.BookingConfirmed}).
		Return(nil, nil)

	rec := s.do(http.MethodGet, "/api/bookings?date=2026-11-03&limit=10&user=bob", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Booking
	decodeResponse(t, rec, &list)
	assert.Len(t, list, 1)

	rec = s.do(http.MethodGet, "/api/bookings?user=bob&status=CONFIRMED", "staff-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = s.do(http.MethodGet, "/api/bookings?limit=ten", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.svc.AssertExpectations(t)
}

func TestOwnership(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("GetBooking", mock.Anything, "b-1").Return(aliceBooking(models.BookingPending), nil)
	s.svc.On("Cancel", mock.Anything, "b-1", "plans changed").Return(aliceBooking(models.BookingCancelled), nil)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/bookings/b-1", "alice", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/bookings/b-1", "bob", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/bookings/b-1", "staff-1", nil).Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/bookings/b-1/cancel", "bob", reasonRequest{Reason: "plans changed"}).Code)
	s.svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)

	rec := s.do(http.MethodPost, "/api/bookings/b-1/cancel", "alice", reasonRequest{Reason: "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	var b models.Booking
	decodeResponse(t, rec, &b)
	assert.Equal(t, models.BookingCancelled, b.Status)
}

func TestCancelWithoutBody(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("GetBooking", mock.Anything, "b-1").Return(aliceBooking(models.BookingPending), nil)
	s.svc.On("Cancel", mock.Anything, "b-1", "").Return(aliceBooking(models.BookingCancelled), nil)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/bookings/b-1/cancel", "alice", nil).Code)
}

func TestCancelMissingBooking(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("GetBooking", mock.Anything, "nope").Return(nil, &booking.NotFoundError{Kind: "booking", ID: "nope"})

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/bookings/nope/cancel", "alice", nil).Code)
}

func TestSubmitPaymentProof(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("GetBooking", mock.Anything, "b-1").Return(aliceBooking(models.BookingPending), nil)
	updated := aliceBooking(models.BookingPending)
	updated.PaymentStatus = models.PaymentPendingVerification
	s.svc.On("SubmitPaymentProof", mock.Anything, "b-1", "TRX-881").Return(updated, nil)

	rec := s.do(http.MethodPost, "/api/bookings/b-1/payment-proof", "alice", paymentProofRequest{Reference: "TRX-881"})
	require.Equal(t, http.StatusOK, rec.Code)
	var b models.Booking
	decodeResponse(t, rec, &b)
	assert.Equal(t, models.PaymentPendingVerification, b.PaymentStatus)
}

func TestPassLifecycle(t *testing.T) {
	s := newTestServer(t)
	confirmed := aliceBooking(models.BookingConfirmed)
	s.svc.On("GetBooking", mock.Anything, "b-1").Return(confirmed, nil)

	rec := s.do(http.MethodGet, "/api/bookings/b-1/pass", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = s.do(http.MethodGet, "/api/bookings/b-1/pass?format=token", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var issued map[string]string
	decodeResponse(t, rec, &issued)
	require.NotEmpty(t, issued["token"])

	rec = s.do(http.MethodPost, "/api/admin/passes/verify", "staff-1", passVerifyRequest{Token: issued["token"]})
	require.Equal(t, http.StatusOK, rec.Code)
	var verdict passVerifyResponse
	decodeResponse(t, rec, &verdict)
	assert.True(t, verdict.Valid)
	assert.Equal(t, "b-1", verdict.Claims.BookingID)

	rec = s.do(http.MethodPost, "/api/admin/passes/verify", "staff-1", passVerifyRequest{Token: "forged"})
	require.Equal(t, http.StatusOK, rec.Code)
	verdict = passVerifyResponse{}
	decodeResponse(t, rec, &verdict)
	assert.False(t, verdict.Valid)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/admin/passes/verify", "alice", passVerifyRequest{Token: issued["token"]}).Code)
}

func TestPassForUnconfirmedBooking(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("GetBooking", mock.Anything, "b-1").Return(aliceBooking(models.BookingPending), nil)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodGet, "/api/bookings/b-1/pass", "alice", nil).Code)
}

func TestPassOfCancelledBookingIsNotValid(t *testing.T) {
	s := newTestServer(t)
	token, err := s.passes.Seal(*aliceBooking(models.BookingConfirmed))
	require.NoError(t, err)
	s.svc.On("GetBooking", mock.Anything, "b-1").Return(aliceBooking(models.BookingCancelled), nil)

	rec := s.do(http.MethodPost, "/api/admin/passes/verify", "staff-1", passVerifyRequest{Token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var verdict passVerifyResponse
	decodeResponse(t, rec, &verdict)
	assert.False(t, verdict.Valid)
	assert.Equal(t, "booking is CANCELLED", verdict.Reason)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	confirmed := aliceBooking(models.BookingConfirmed)
	confirmed.PaymentStatus = models.PaymentVerified
	s.svc.On("VerifyPayment", mock.Anything, "b-1").Return(confirmed, nil)
	s.svc.On("RejectPayment", mock.Anything, "b-2", "blurry receipt").Return(nil, &booking.InvalidTransitionError{From: "PENDING", To: "PENDING", Detail: "payment is PENDING_PAYMENT"})
	s.svc.On("TransitionStatus", mock.Anything, "b-1", models.BookingCancelled, "facility closed").Return(aliceBooking(models.BookingCancelled), nil)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/admin/bookings/b-1/verify-payment", "alice", nil).Code)
	s.svc.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/admin/bookings/b-1/verify-payment", "staff-1", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, "/api/admin/bookings/b-2/reject-payment", "staff-1", reasonRequest{Reason: "blurry receipt"}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/admin/bookings/b-1/status", "staff-1", statusRequest{Status: models.BookingCancelled, Reason: "facility closed"}).Code)

	rec := s.do(http.MethodGet, "/api/admin/bookings/b-1/notifications", "staff-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestQuoteAndSchedule(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("Quote", mock.Anything, "alice", mock.Anything).Return(&models.PriceBreakdown{BasePrice: 3200, Discount: 640, TotalPrice: 2560}, nil)
	s.svc.On("DaySchedule", mock.Anything, "padel-tennis", "2026-11-03").Return([]models.ResourceSchedule{{ResourceID: 1, Booked: []models.BookedWindow{}}}, nil)

	// member prices depend on the caller, so anonymous quotes are refused
	rec := s.do(http.MethodPost, "/api/pricing/quote", "", models.CreateBookingRequest{FacilityID: "padel-tennis"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/pricing/quote", "alice", models.CreateBookingRequest{FacilityID: "padel-tennis"})
	require.Equal(t, http.StatusOK, rec.Code)
	var price models.PriceBreakdown
	decodeResponse(t, rec, &price)
	assert.Equal(t, int64(2560), price.TotalPrice)

	rec = s.do(http.MethodGet, "/api/facilities/padel-tennis/schedule?date=2026-11-03", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schedule []models.ResourceSchedule
	decodeResponse(t, rec, &schedule)
	assert.Len(t, schedule, 1)
}
