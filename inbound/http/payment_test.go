package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatepass/common/constant"
	jetsteamMock "gatepass/common/jetstream/mocks"
	"gatepass/outbound/store"
)

type PaymentHttpTestSuite struct {
	suite.Suite

	Querier *store.Queries
	PgxMock pgxmock.PgxPoolIface

	Validate  *validator.Validate
	Publisher *jetsteamMock.MockPublisher
}

func (s *PaymentHttpTestSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())

	pool, err := pgxmock.NewPool()
	if err != nil {
		s.T().Fatalf("failed to create pgxmock pool: %v", err)
	}

	s.PgxMock = pool
	s.Querier = store.New(pool)

	s.Validate = validator.New()
	s.Publisher = jetsteamMock.NewMockPublisher(ctrl)
}

func (s *PaymentHttpTestSuite) TearDownTest() {
	s.PgxMock.Close()
}

func TestPaymentHttpTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentHttpTestSuite))
}

func (s *PaymentHttpTestSuite) newHandler() *PaymentHttp {
	return RegisterPaymentHttp(http.NewServeMux(), s.Querier, s.Publisher, s.Validate)
}

func (s *PaymentHttpTestSuite) TestCallback() {
	s.Run("enqueues and acknowledges", func() {
		in := s.newHandler()

		s.Publisher.EXPECT().Publish(
			gomock.Any(),
			constant.SubjectPaymentCallback,
			gomock.Any(),
		).Return(nil, nil)

		body := `{"reference": "PAY-01J8G2M5ZT3Q9X7K4W1VB6NCDE", "outcome": "success", "amount": 150000}`
		req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.callback(w, req)

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("rejects unknown outcome", func() {
		in := s.newHandler()

		body := `{"reference": "PAY-01J8G2M5ZT3Q9X7K4W1VB6NCDE", "outcome": "maybe"}`
		req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.callback(w, req)

		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *PaymentHttpTestSuite) TestRetryPayment() {
	const uniqueID = "REG-01J8G2M5ZT3Q9X7K4W1VB6NCDE"

	s.Run("re-arms a failed payment", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE registrations\s+SET payment_status = 'pending'`).
			WithArgs(uniqueID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		req := httptest.NewRequest(http.MethodPost, "/api/payments/retry",
			strings.NewReader(`{"unique_id": "`+uniqueID+`"}`))
		w := httptest.NewRecorder()
		in.retryPayment(w, req)

		s.Equal(http.StatusOK, w.Code)
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})

	s.Run("nothing to retry", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE registrations\s+SET payment_status = 'pending'`).
			WithArgs(uniqueID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		req := httptest.NewRequest(http.MethodPost, "/api/payments/retry",
			strings.NewReader(`{"unique_id": "`+uniqueID+`"}`))
		w := httptest.NewRecorder()
		in.retryPayment(w, req)

		s.Equal(http.StatusConflict, w.Code)
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})
}

func (s *PaymentHttpTestSuite) TestReviewReceipt() {
	const uniqueID = "REG-01J8G2M5ZT3Q9X7K4W1VB6NCDE"

	s.Run("approve publishes payment succeeded", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE registrations\s+SET payment_status = 'paid'`).
			WithArgs(uniqueID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		s.PgxMock.ExpectQuery(`FROM registrations WHERE unique_id`).
			WithArgs(uniqueID).
			WillReturnRows(registrationRow(uniqueID, "hash", "confirmed", "paid", ""))

		s.Publisher.EXPECT().Publish(
			gomock.Any(),
			constant.SubjectPaymentSucceeded,
			gomock.Any(),
		).Return(nil, nil)

		body := `{"unique_id": "` + uniqueID + `", "reviewer_id": "staff-1", "approve": true}`
		req := httptest.NewRequest(http.MethodPost, "/api/registrations/receipt/review", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.reviewReceipt(w, req)

		s.Equal(http.StatusOK, w.Code)
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})

	s.Run("reject stays quiet", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE registrations\s+SET payment_status = 'failed'`).
			WithArgs(uniqueID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		body := `{"unique_id": "` + uniqueID + `", "reviewer_id": "staff-1", "approve": false}`
		req := httptest.NewRequest(http.MethodPost, "/api/registrations/receipt/review", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.reviewReceipt(w, req)

		s.Equal(http.StatusOK, w.Code)
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})

	s.Run("no receipt pending", func() {
		in := s.newHandler()

		s.PgxMock.ExpectExec(`UPDATE registrations\s+SET payment_status = 'paid'`).
			WithArgs(uniqueID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		body := `{"unique_id": "` + uniqueID + `", "reviewer_id": "staff-1", "approve": true}`
		req := httptest.NewRequest(http.MethodPost, "/api/registrations/receipt/review", strings.NewReader(body))
		w := httptest.NewRecorder()
		in.reviewReceipt(w, req)

		s.Equal(http.StatusConflict, w.Code)
		s.Contains(w.Body.String(), "No receipt pending review")
		s.NoError(s.PgxMock.ExpectationsWereMet())
	})
}
