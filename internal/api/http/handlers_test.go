package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/qr-tracker/internal/database"
	"github.com/vadimbarashkov/qr-tracker/internal/models"
	"github.com/vadimbarashkov/qr-tracker/internal/service"
	"github.com/vadimbarashkov/qr-tracker/pkg/response"
)

const testBaseURL = "https://qr.example.com"

type MockQRCodeService struct {
	mock.Mock
}

func (s *MockQRCodeService) CreateQRCode(ctx context.Context, originalURL, title, description string) (*models.QRCode, error) {
	args := s.Called(ctx, originalURL, title, description)
	qr, _ := args.Get(0).(*models.QRCode)
	return qr, args.Error(1)
}

func (s *MockQRCodeService) ResolveShortID(ctx context.Context, shortID string, meta models.ScanEvent) (*models.QRCode, error) {
	args := s.Called(ctx, shortID, meta)
	qr, _ := args.Get(0).(*models.QRCode)
	return qr, args.Error(1)
}

func (s *MockQRCodeService) ModifyURL(ctx context.Context, shortID, originalURL string) (*models.QRCode, error) {
	args := s.Called(ctx, shortID, originalURL)
	qr, _ := args.Get(0).(*models.QRCode)
	return qr, args.Error(1)
}

func (s *MockQRCodeService) DeactivateQRCode(ctx context.Context, shortID string) error {
	args := s.Called(ctx, shortID)
	return args.Error(0)
}

func (s *MockQRCodeService) GetQRCodeStats(ctx context.Context, shortID string) (*models.QRCodeStats, error) {
	args := s.Called(ctx, shortID)
	stats, _ := args.Get(0).(*models.QRCodeStats)
	return stats, args.Error(1)
}

type HandlersTestSuite struct {
	suite.Suite
	logger  *httplog.Logger
	svcMock *MockQRCodeService
	server  *httptest.Server
	e       *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.svcMock = new(MockQRCodeService)
	router := NewRouter(suite.logger, suite.svcMock, testBaseURL)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			// Redirect targets are external; assert on the Location header instead.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.svcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *HandlersTestSuite) TestCreateQRCode() {
	const path = "/qr/create"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("invalid request body", func() {
		suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.BadRequestResponse.Message)
	})

	suite.Run("validation error", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{
				"url": "invalid url",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			ContainsKey("message").
			ContainsKey("details")
	})

	suite.Run("invalid url rejected by service", func() {
		suite.svcMock.
			On("CreateQRCode", mock.Anything, "https://example.com", "", "").
			Times(1).
			Return(nil, service.ErrInvalidURL)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"url": "https://example.com",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.BadRequestResponse.Message)
	})

	suite.Run("server error", func() {
		suite.svcMock.
			On("CreateQRCode", mock.Anything, "https://example.com", "", "").
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.POST(path).
			WithJSON(map[string]string{
				"url": "https://example.com",
			}).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)

		suite.svcMock.AssertNumberOfCalls(suite.T(), "CreateQRCode", 1)
	})

	suite.Run("success", func() {
		suite.svcMock.
			On("CreateQRCode", mock.Anything, "https://example.com", "My QR", "Landing page").
			Times(1).
			Return(&models.QRCode{
				ShortID:     "abc123XY",
				OriginalURL: "https://example.com",
				RedirectURL: testBaseURL + "/redirect/abc123XY",
				Title:       "My QR",
				Description: "Landing page",
				Image:       "data:image/png;base64,AAAA",
				IsActive:    true,
			}, nil)

		suite.e.POST(path).
			WithJSON(map[string]string{
				"url":         "https://example.com",
				"title":       "My QR",
				"description": "Landing page",
			}).
			Expect().
			Status(http.StatusCreated).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			ContainsKey("message").
			Value("data").Object().
			HasValue("shortId", "abc123XY").
			HasValue("originalUrl", "https://example.com").
			HasValue("redirectUrl", testBaseURL+"/redirect/abc123XY").
			HasValue("dashboardUrl", testBaseURL+"/dashboard/abc123XY").
			HasValue("qrCodeImage", "data:image/png;base64,AAAA").
			HasValue("title", "My QR")

		suite.svcMock.AssertNumberOfCalls(suite.T(), "CreateQRCode", 1)
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	const path = "/redirect/%s"

	suite.Run("not found redirects to the 404 page", func() {
		suite.svcMock.
			On("ResolveShortID", mock.Anything, "abc123XY", mock.Anything).
			Times(1).
			Return(nil, database.ErrQRCodeNotFound)

		suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual(testBaseURL + "/404")
	})

	suite.Run("store error redirects to the error page", func() {
		suite.svcMock.
			On("ResolveShortID", mock.Anything, "abc123XY", mock.Anything).
			Times(1).
			Return(nil, errors.New("store unavailable"))

		suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual(testBaseURL + "/500")
	})

	suite.Run("success redirects to the destination", func() {
		suite.svcMock.
			On("ResolveShortID", mock.Anything, "abc123XY", mock.MatchedBy(func(meta models.ScanEvent) bool {
				return meta.UserAgent == "test-agent" && meta.Country == "FR" && meta.IP != ""
			})).
			Times(1).
			Return(&models.QRCode{
				ShortID:     "abc123XY",
				OriginalURL: "https://example.com",
				Scans:       1,
			}, nil)

		suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			WithHeader("User-Agent", "test-agent").
			WithHeader("CF-IPCountry", "FR").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")

		suite.svcMock.AssertNumberOfCalls(suite.T(), "ResolveShortID", 1)
	})

	suite.Run("missing country falls back to unknown", func() {
		suite.svcMock.
			On("ResolveShortID", mock.Anything, "abc123XY", mock.MatchedBy(func(meta models.ScanEvent) bool {
				return meta.Country == "unknown"
			})).
			Times(1).
			Return(&models.QRCode{
				ShortID:     "abc123XY",
				OriginalURL: "https://example.com",
			}, nil)

		suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")
	})
}

func (suite *HandlersTestSuite) TestGetQRCodeStats() {
	const path = "/qr/stats/%s"

	suite.Run("not found", func() {
		suite.svcMock.
			On("GetQRCodeStats", mock.Anything, "abc123XY").
			Times(1).
			Return(nil, database.ErrQRCodeNotFound)

		suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("server error", func() {
		suite.svcMock.
			On("GetQRCodeStats", mock.Anything, "abc123XY").
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		lastScanned := time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

		suite.svcMock.
			On("GetQRCodeStats", mock.Anything, "abc123XY").
			Times(1).
			Return(&models.QRCodeStats{
				TotalScans:  42,
				ScansToday:  3,
				LastScanned: &lastScanned,
				Title:       "QR pour example.com",
				OriginalURL: "https://example.com",
				RecentScans: []models.ScanEvent{
					{Timestamp: lastScanned, UserAgent: "test-agent", IP: "203.0.113.7", Country: "FR"},
				},
			}, nil)

		obj := suite.e.GET(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		obj.HasValue("totalScans", 42).
			HasValue("scansToday", 3).
			HasValue("title", "QR pour example.com").
			HasValue("originalUrl", "https://example.com")
		obj.Value("recentScans").Array().Length().IsEqual(1)

		suite.svcMock.AssertNumberOfCalls(suite.T(), "GetQRCodeStats", 1)
	})
}

func (suite *HandlersTestSuite) TestModifyURL() {
	const path = "/qr/%s"

	suite.Run("empty request body", func() {
		suite.e.PUT(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("validation error", func() {
		suite.e.PUT(fmt.Sprintf(path, "abc123XY")).
			WithJSON(map[string]string{
				"url": "invalid url",
			}).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			ContainsKey("message").
			ContainsKey("details")
	})

	suite.Run("not found", func() {
		suite.svcMock.
			On("ModifyURL", mock.Anything, "abc123XY", "https://new-example.com").
			Times(1).
			Return(nil, database.ErrQRCodeNotFound)

		suite.e.PUT(fmt.Sprintf(path, "abc123XY")).
			WithJSON(map[string]string{
				"url": "https://new-example.com",
			}).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("server error", func() {
		suite.svcMock.
			On("ModifyURL", mock.Anything, "abc123XY", "https://new-example.com").
			Times(1).
			Return(nil, errors.New("unknown error"))

		suite.e.PUT(fmt.Sprintf(path, "abc123XY")).
			WithJSON(map[string]string{
				"url": "https://new-example.com",
			}).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.svcMock.
			On("ModifyURL", mock.Anything, "abc123XY", "https://new-example.com").
			Times(1).
			Return(&models.QRCode{
				ShortID:     "abc123XY",
				OriginalURL: "https://new-example.com",
				Image:       "data:image/png;base64,AAAA",
			}, nil)

		suite.e.PUT(fmt.Sprintf(path, "abc123XY")).
			WithJSON(map[string]string{
				"url": "https://new-example.com",
			}).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			ContainsKey("message").
			Value("data").Object().
			HasValue("shortId", "abc123XY").
			HasValue("originalUrl", "https://new-example.com").
			HasValue("qrCodeImage", "data:image/png;base64,AAAA")

		suite.svcMock.AssertNumberOfCalls(suite.T(), "ModifyURL", 1)
	})
}

func (suite *HandlersTestSuite) TestDeactivateQRCode() {
	const path = "/qr/%s"

	suite.Run("not found", func() {
		suite.svcMock.
			On("DeactivateQRCode", mock.Anything, "abc123XY").
			Times(1).
			Return(database.ErrQRCodeNotFound)

		suite.e.DELETE(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusNotFound).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("server error", func() {
		suite.svcMock.
			On("DeactivateQRCode", mock.Anything, "abc123XY").
			Times(1).
			Return(errors.New("unknown error"))

		suite.e.DELETE(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusInternalServerError).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("success", func() {
		suite.svcMock.
			On("DeactivateQRCode", mock.Anything, "abc123XY").
			Times(1).
			Return(nil)

		suite.e.DELETE(fmt.Sprintf(path, "abc123XY")).
			Expect().
			Status(http.StatusOK).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			ContainsKey("message")

		suite.svcMock.AssertNumberOfCalls(suite.T(), "DeactivateQRCode", 1)
	})
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
