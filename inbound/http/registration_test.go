package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatepass/common/constant"
	jetsteamMock "gatepass/common/jetstream/mocks"
	"gatepass/model"
	"gatepass/outbound/store"
)

var eventColumns = []string{
	"id", "organization_id", "name", "status", "ticketed",
	"allow_guests", "allow_invitees",
	"requires_payment", "amount", "currency",
	"charge_members", "charge_guests", "charge_invitees",
	"max_attendees", "attendee_count",
	"registration_opens_at", "registration_closes_at",
	"similarity_auto_approve", "similarity_manual_review",
}

type eventRowOpts struct {
	ticketed        bool
	allowGuests     bool
	requiresPayment bool
	chargeMembers   bool
	chargeGuests    bool
}

func eventRow(opts eventRowOpts) *pgxmock.Rows {
	opens := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	return pgxmock.NewRows(eventColumns).AddRow(
		int64(1), int64(10), "Annual Gala", "upcoming", opts.ticketed,
		opts.allowGuests, false,
		opts.requiresPayment, int64(150_000), "IDR",
		opts.chargeMembers, opts.chargeGuests, false,
		int32(100), int32(0),
		opens, closes,
		float64(0), float64(0),
	)
}

var fixedNow = func() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

type RegistrationHttpTestSuite struct {
	suite.Suite

	Querier *store.Queries
	PgxMock pgxmock.PgxPoolIface

	Cache     *redis.Client
	CacheMock redismock.ClientMock

	Validate  *validator.Validate
	Publisher *jetsteamMock.MockPublisher
}

func (s *RegistrationHttpTestSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())

	rdb, mock := redismock.NewClientMock()
	s.Cache = rdb
	s.CacheMock = mock

	pool, err := pgxmock.NewPool()
	if err != nil {
		s.T().Fatalf("failed to create pgxmock pool: %v", err)
	}

	s.PgxMock = pool
	s.Querier = store.New(pool)

	s.Validate = validator.New()
	s.Publisher = jetsteamMock.NewMockPublisher(ctrl)

	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func (s *RegistrationHttpTestSuite) TearDownTest() {
	s.PgxMock.Close()

	if err := s.Cache.Close(); err != nil {
		s.T().Fatalf("failed to close redis mock: %v", err)
	}
}

func TestRegistrationHttpTestSuite(t *testing.T) {
	suite.Run(t, new(RegistrationHttpTestSuite))
}

func (s *RegistrationHttpTestSuite) TestCreate() {
	findEventQuery := `SELECT id, organization_id, name, status, ticketed`

	tests := []struct {
		name           string
		reqBody        string
		setupMock      func()
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "invalid json",
			reqBody:        `{invalid json`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request"}`,
		},
		{
			name:           "validation error - missing name",
			reqBody:        `{"event_id": 1, "category": "member", "email": "john@example.com", "phone": "+6281234567890"}`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","data":{"Name":"required"}}`,
		},
		{
			name:           "validation error - unknown category",
			reqBody:        `{"event_id": 1, "category": "vip", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890"}`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","data":{"Category":"not found"}}`,
		},
		{
			name:    "event not found",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnError(pgx.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Event not found"}`,
		},
		{
			name:    "ticketed event rejects registration",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{ticketed: true}))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Ticketed event, purchase a ticket instead"}`,
		},
		{
			name:    "guest not allowed",
			reqBody: `{"event_id": 1, "category": "guest", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"host_member": "Jane"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{allowGuests: false}))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   fmt.Sprintf(`{"error":"%s"}`, constant.ReasonCategoryNotAllowed),
		},
		{
			name:    "missing required custom field",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{}))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","data":{"member_id":"required"}}`,
		},
		{
			name:    "charged member without receipt",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{requiresPayment: true, chargeMembers: true}))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   fmt.Sprintf(`{"error":"%s"}`, constant.ReasonPaymentProofRequired),
		},
		{
			name:    "email already registered - from cache",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{}))
				s.CacheMock.ExpectSetNX(fmt.Sprintf(constant.RegistrationEmailLock, int64(1), "john@example.com"), true, constant.RegistrationEmailLockDefaultTTL).
					SetVal(false)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Email already registered"}`,
		},
		{
			name:    "email already registered - from db",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{}))
				s.CacheMock.ExpectSetNX(fmt.Sprintf(constant.RegistrationEmailLock, int64(1), "john@example.com"), true, constant.RegistrationEmailLockDefaultTTL).
					SetVal(true)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(int64(1), "john@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Email already registered"}`,
		},
		{
			name:    "capacity exceeded - cache counter",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{}))
				s.CacheMock.ExpectSetNX(fmt.Sprintf(constant.RegistrationEmailLock, int64(1), "john@example.com"), true, constant.RegistrationEmailLockDefaultTTL).
					SetVal(true)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(int64(1), "john@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
				s.CacheMock.ExpectDecr(fmt.Sprintf(constant.EventCapacityKey, int64(1))).
					SetVal(-1)
				s.CacheMock.ExpectIncr(fmt.Sprintf(constant.EventCapacityKey, int64(1))).
					SetVal(0)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   fmt.Sprintf(`{"error":"%s"}`, constant.ReasonCapacityExceeded),
		},
		{
			name:    "capacity exceeded - durable counter",
			reqBody: `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{}))
				s.CacheMock.ExpectSetNX(fmt.Sprintf(constant.RegistrationEmailLock, int64(1), "john@example.com"), true, constant.RegistrationEmailLockDefaultTTL).
					SetVal(true)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(int64(1), "john@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
				s.CacheMock.ExpectDecr(fmt.Sprintf(constant.EventCapacityKey, int64(1))).
					SetVal(0)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectExec(`UPDATE events SET attendee_count = attendee_count \+ 1`).
					WithArgs(int64(1)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				s.PgxMock.ExpectRollback()
				s.CacheMock.ExpectIncr(fmt.Sprintf(constant.EventCapacityKey, int64(1))).
					SetVal(1)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   fmt.Sprintf(`{"error":"%s"}`, constant.ReasonCapacityExceeded),
		},
		{
			name:    "success - free event",
			reqBody: `{"event_id": 1, "category": "guest", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"host_member": "Jane"}}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{allowGuests: true}))
				s.CacheMock.ExpectSetNX(fmt.Sprintf(constant.RegistrationEmailLock, int64(1), "john@example.com"), true, constant.RegistrationEmailLockDefaultTTL).
					SetVal(true)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(int64(1), "john@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
				s.CacheMock.ExpectDecr(fmt.Sprintf(constant.EventCapacityKey, int64(1))).
					SetVal(99)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectExec(`UPDATE events SET attendee_count = attendee_count \+ 1`).
					WithArgs(int64(1)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectQuery(`INSERT INTO registrations`).
					WithArgs(
						int64(1),                // event_id
						model.Category("guest"), // category
						"John Doe",              // name
						"john@example.com",      // email
						"+6281234567890",        // phone
						pgxmock.AnyArg(),        // fields
						pgxmock.AnyArg(),        // unique_id
						pgxmock.AnyArg(),        // qr_secret_hash
						pgxmock.AnyArg(),        // manual_code
						"confirmed",             // status
						"not_required",          // payment_status
						int64(0),                // payment_amount
						"",                      // payment_currency
						pgxmock.AnyArg(),        // payment_reference
						pgxmock.AnyArg(),        // receipt_path
						false,                   // receipt_pending_review
						pgxmock.AnyArg(),        // face_photo_path
					).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
				s.PgxMock.ExpectCommit()

				s.Publisher.EXPECT().Publish(
					gomock.Any(),
					constant.SubjectRegistrationConfirmed,
					gomock.Any(),
				).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"unique_id":"REG-`,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			registrationHttp := RegisterRegistrationHttp(
				http.NewServeMux(),
				s.Querier,
				s.Cache,
				s.Publisher,
				s.Validate,
			)
			registrationHttp.TimeNow = fixedNow

			tc.setupMock()

			req := httptest.NewRequest(http.MethodPost, "/api/registrations", strings.NewReader(tc.reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			registrationHttp.create(w, req)

			s.Equal(tc.expectedStatus, w.Code)

			if tc.expectedStatus == http.StatusOK {
				s.Contains(w.Body.String(), tc.expectedBody, "Response should contain expected text")
			} else {
				actual := strings.TrimSpace(w.Body.String())
				s.Equal(tc.expectedBody, actual)
			}

			s.NoError(s.CacheMock.ExpectationsWereMet())
			s.NoError(s.PgxMock.ExpectationsWereMet())
		})
	}
}

func (s *RegistrationHttpTestSuite) TestCreateWindowClosed() {
	registrationHttp := RegisterRegistrationHttp(
		http.NewServeMux(),
		s.Querier,
		s.Cache,
		s.Publisher,
		s.Validate,
	)
	registrationHttp.TimeNow = func() time.Time {
		return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	}

	s.PgxMock.ExpectQuery(`SELECT id, organization_id, name, status, ticketed`).
		WithArgs(int64(1)).
		WillReturnRows(eventRow(eventRowOpts{}))

	body := `{"event_id": 1, "category": "member", "name": "John Doe", "email": "john@example.com", "phone": "+6281234567890", "fields": {"member_id": "M-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/registrations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	registrationHttp.create(w, req)

	s.Equal(http.StatusConflict, w.Code)
	s.Equal(fmt.Sprintf(`{"error":"%s"}`, constant.ReasonWindowClosed), strings.TrimSpace(w.Body.String()))
	s.NoError(s.PgxMock.ExpectationsWereMet())
}
