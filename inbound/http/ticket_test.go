package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatepass/common/constant"
	jetsteamMock "gatepass/common/jetstream/mocks"
	"gatepass/model"
	"gatepass/outbound/store"
)

type TicketHttpTestSuite struct {
	suite.Suite

	Querier *store.Queries
	PgxMock pgxmock.PgxPoolIface

	Cache     *redis.Client
	CacheMock redismock.ClientMock

	Validate  *validator.Validate
	Publisher *jetsteamMock.MockPublisher
}

func (s *TicketHttpTestSuite) SetupTest() {
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
}

func (s *TicketHttpTestSuite) TearDownTest() {
	s.PgxMock.Close()

	if err := s.Cache.Close(); err != nil {
		s.T().Fatalf("failed to close redis mock: %v", err)
	}
}

func TestTicketHttpTestSuite(t *testing.T) {
	suite.Run(t, new(TicketHttpTestSuite))
}

func (s *TicketHttpTestSuite) newHandler() *TicketHttp {
	in := RegisterTicketHttp(http.NewServeMux(), s.Querier, s.Cache, s.Publisher, s.Validate)
	in.TimeNow = fixedNow
	return in
}

func (s *TicketHttpTestSuite) TestPurchase() {
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
			reqBody:        `not json`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "event not found",
			reqBody: `{"event_id": 1, "category": "guest", "name": "Jane Doe", "email": "jane@example.com", "phone": "+6289876543210"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnError(pgx.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:    "registration-only event",
			reqBody: `{"event_id": 1, "category": "guest", "name": "Jane Doe", "email": "jane@example.com", "phone": "+6289876543210"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{allowGuests: true}))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   "Not a ticketed event",
		},
		{
			name:    "sold out",
			reqBody: `{"event_id": 1, "category": "guest", "name": "Jane Doe", "email": "jane@example.com", "phone": "+6289876543210"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{ticketed: true, allowGuests: true}))
				s.CacheMock.ExpectDecr("event:1:capacity").SetVal(-1)
				s.CacheMock.ExpectIncr("event:1:capacity").SetVal(0)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   constant.ReasonCapacityExceeded,
		},
		{
			name:    "success free ticket",
			reqBody: `{"event_id": 1, "category": "guest", "name": "Jane Doe", "email": "jane@example.com", "phone": "+6289876543210"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(findEventQuery).
					WithArgs(int64(1)).
					WillReturnRows(eventRow(eventRowOpts{ticketed: true, allowGuests: true}))
				s.CacheMock.ExpectDecr("event:1:capacity").SetVal(99)
				s.PgxMock.ExpectQuery(`SELECT EXISTS \(`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectExec(`UPDATE events SET attendee_count = attendee_count \+ 1`).
					WithArgs(int64(1)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectQuery(`INSERT INTO tickets`).
					WithArgs(
						int64(1),                // event_id
						model.Category("guest"), // category
						"Jane Doe",              // name
						"jane@example.com",      // email
						"+6289876543210",        // phone
						pgxmock.AnyArg(),        // ticket_number
						pgxmock.AnyArg(),        // qr_secret_hash
						pgxmock.AnyArg(),        // manual_code
						"paid",                  // status
						"paid",                  // payment_status
						int64(0),                // price
						"",                      // currency
						pgxmock.AnyArg(),        // payment_reference
					).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
				s.PgxMock.ExpectCommit()

				s.Publisher.EXPECT().Publish(
					gomock.Any(),
					constant.SubjectRegistrationConfirmed,
					gomock.Any(),
				).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"ticket_number":"TKT-`,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			in := s.newHandler()
			tc.setupMock()

			req := httptest.NewRequest(http.MethodPost, "/api/tickets", strings.NewReader(tc.reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			in.purchase(w, req)

			s.Equal(tc.expectedStatus, w.Code)
			if tc.expectedBody != "" {
				s.Contains(w.Body.String(), tc.expectedBody)
			}

			s.NoError(s.PgxMock.ExpectationsWereMet())
			s.NoError(s.CacheMock.ExpectationsWereMet())
		})
	}
}

func (s *TicketHttpTestSuite) TestTransfer() {
	const number = "TKT-01J8G2M5ZT3Q9X7K4W1VB6NCDE"

	s.Run("success", func() {
		in := s.newHandler()

		s.PgxMock.ExpectBegin()
		s.PgxMock.ExpectQuery(`FROM tickets WHERE ticket_number`).
			WithArgs(number).
			WillReturnRows(pendingTransferableTicketRow(number))
		s.PgxMock.ExpectExec(`UPDATE tickets\s+SET name = \$2, email = \$3, phone = \$4`).
			WithArgs(number, "New Owner", "new@example.com", "+6281111111111").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		s.PgxMock.ExpectQuery(`INSERT INTO ticket_transfers`).
			WithArgs(number, "Jane Doe", "jane@example.com", "New Owner", "new@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int32(1)))
		s.PgxMock.ExpectCommit()

		body := `{"ticket_number": "` + number + `", "to_name": "New Owner", "to_email": "new@example.com", "to_phone": "+6281111111111"}`
		req := httptest.NewRequest(http.MethodPost, "/api/tickets/transfer", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.transfer(w, req)

		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"transfer_seq":1`)

		s.NoError(s.PgxMock.ExpectationsWereMet())
	})

	s.Run("consumed ticket cannot move", func() {
		in := s.newHandler()

		s.PgxMock.ExpectBegin()
		s.PgxMock.ExpectQuery(`FROM tickets WHERE ticket_number`).
			WithArgs(number).
			WillReturnRows(pendingTransferableTicketRow(number))
		s.PgxMock.ExpectExec(`UPDATE tickets\s+SET name = \$2, email = \$3, phone = \$4`).
			WithArgs(number, "New Owner", "new@example.com", "+6281111111111").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		s.PgxMock.ExpectRollback()

		body := `{"ticket_number": "` + number + `", "to_name": "New Owner", "to_email": "new@example.com", "to_phone": "+6281111111111"}`
		req := httptest.NewRequest(http.MethodPost, "/api/tickets/transfer", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.transfer(w, req)

		s.Equal(http.StatusConflict, w.Code)
		s.Contains(w.Body.String(), "Ticket not transferable")

		s.NoError(s.PgxMock.ExpectationsWereMet())
	})
}

func (s *TicketHttpTestSuite) TestRefund() {
	const number = "TKT-01J8G2M5ZT3Q9X7K4W1VB6NCDE"

	s.Run("success", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE tickets\s+SET payment_status = 'refunded'`).
			WithArgs(number).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		req := httptest.NewRequest(http.MethodPost, "/api/tickets/refund",
			strings.NewReader(`{"ticket_number": "`+number+`"}`))
		w := httptest.NewRecorder()
		in.refund(w, req)

		s.Equal(http.StatusOK, w.Code)
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})

	s.Run("used ticket not refundable", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE tickets\s+SET payment_status = 'refunded'`).
			WithArgs(number).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		req := httptest.NewRequest(http.MethodPost, "/api/tickets/refund",
			strings.NewReader(`{"ticket_number": "`+number+`"}`))
		w := httptest.NewRecorder()
		in.refund(w, req)

		s.Equal(http.StatusConflict, w.Code)
		s.Contains(w.Body.String(), "Ticket not refundable")
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})
}

func pendingTransferableTicketRow(number string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "event_id", "category", "name", "email", "phone",
		"ticket_number", "qr_secret_hash", "manual_code", "status", "payment_status",
		"price", "currency", "payment_reference", "validated_at", "validated_by",
	}).AddRow(
		int64(3), int64(1), model.CategoryGuest, "Jane Doe", "jane@example.com", "+6289876543210",
		number, "hash", "EFGH6789", "paid", "paid",
		int64(250_000), "IDR", "PAY-01J8G2M5ZT3Q9X7K4W1VB6NCDE",
		pgtype.Timestamptz{}, pgtype.Text{},
	)
}
