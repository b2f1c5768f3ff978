package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmtriage/internal/models"
	"crmtriage/internal/repository"
	"crmtriage/internal/service"
)

type mockTagWriter struct {
	CreateFunc func(ctx context.Context, tag *models.Tag) error
	Calls      map[string]int
}

func newMockTagWriter() *mockTagWriter {
	return &mockTagWriter{Calls: make(map[string]int)}
}

func (m *mockTagWriter) Create(ctx context.Context, tag *models.Tag) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tag)
	}
	return nil
}

type testServer struct {
	router http.Handler
	store  *service.MessageStore
	book   *service.CustomerBook
	tags   *mockTagWriter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry, err := service.NewTagRegistry(
		models.Tag{ID: "vip", DisplayName: "VIP"},
		models.Tag{ID: "complaint", DisplayName: "Şikayet"},
	)
	require.NoError(t, err)

	now := time.Now()
	customers := []models.Customer{
		{ID: "c1", Name: "Ayşe Yılmaz", Phone: "+905551112233", Segment: models.SegmentPremium, CreatedAt: now},
		{ID: "c2", Name: "Mehmet Demir", Segment: models.SegmentBasic, Tags: models.TagSet{"vip"}, CreatedAt: now.Add(-time.Hour)},
	}
	campaigns := []models.Campaign{{ID: "p1", Name: "Bahar İndirimi", BrandID: "acme"}}
	directory := service.NewStaticDirectory(customers, campaigns)

	pipeline, err := service.PipelineFor("brand", nil)
	require.NoError(t, err)
	store := service.NewMessageStore("brand", pipeline, registry, service.WithDirectory(directory))
	require.NoError(t, store.Load([]models.Message{
		{ID: "m1", CustomerID: "c1", CampaignID: "p1", BrandID: "acme", Body: "Kargom nerede?", Status: "new", CreatedAt: now, Version: 1},
		{ID: "m2", CustomerID: "c2", CampaignID: "p1", BrandID: "acme", Body: "Fatura hatalı", Status: "new", Tags: models.TagSet{"vip"}, CreatedAt: now, Version: 1},
		{ID: "m3", CustomerID: "c2", BrandID: "globex", Body: "Teşekkürler", Status: "sold", CreatedAt: now, Version: 1},
	}))

	book := service.NewCustomerBook(registry, nil, nil, zerolog.Nop())
	require.NoError(t, book.Load(customers))

	tags := newMockTagWriter()
	router := NewRouter(RouterConfig{
		Boards:    NewBoardHandler([]*service.MessageStore{store}, book, nil),
		Customers: NewCustomerHandler(book),
		Tags:      NewTagHandler(registry, tags),
		Logger:    zerolog.Nop(),
	})
	return &testServer{router: router, store: store, book: book, tags: tags}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[ErrorResponse](t, rec).Error.Code
}

func TestListMessages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/boards/brand/messages", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MessageListResponse](t, rec)
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "Ayşe Yılmaz", resp.Messages[0].CustomerName)
	assert.Equal(t, "Bahar İndirimi", resp.Messages[0].CampaignName)
	assert.Nil(t, resp.Pagination)
}

func TestListMessages_Filters(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name  string
		query string
		want  []string
	}{
		{"search", "?search=FATURA", []string{"m2"}},
		{"brand", "?brand=globex", []string{"m3"}},
		{"campaign", "?campaign=p1", []string{"m1", "m2"}},
		{"tag equals", "?tags=vip", []string{"m2"}},
		{"status", "?status=sold", []string{"m3"}},
		{"last six months", "?date=last6Months", []string{"m1", "m2", "m3"}},
		{"all sentinels", "?brand=all&campaign=all&tags=all", []string{"m1", "m2", "m3"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/boards/brand/messages"+tc.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var got []string
			for _, m := range decode[MessageListResponse](t, rec).Messages {
				got = append(got, m.ID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListMessages_InvalidCriteria(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/boards/brand/messages?date=someday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/boards/brand/messages?tags=vip,complaint&tagMode=equals", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessages_Pagination(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/boards/brand/messages?page=2&per_page=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MessageListResponse](t, rec)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m3", resp.Messages[0].ID)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, PaginationInfo{Page: 2, PageSize: 2, TotalCount: 3, TotalPages: 2}, *resp.Pagination)
}

func TestUnknownBoard(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/boards/nope/messages", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, rec))
}

func TestColumns(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/boards/brand/columns", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	columns := decode[[]models.Column](t, rec)
	require.Len(t, columns, 5)
	assert.Equal(t, "new", columns[0].Status)
	assert.Len(t, columns[0].Messages, 2)
	assert.Empty(t, columns[1].Messages)
	assert.Equal(t, "sold", columns[4].Status)
	assert.Len(t, columns[4].Messages, 1)
}

func TestCreateMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages", CreateMessageRequest{
		ID:         "m9",
		CustomerID: "c1",
		BrandID:    "acme",
		Body:       "İade talebi",
		Tags:       []string{"complaint"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[models.MessageView](t, rec)
	assert.Equal(t, "m9", v.ID)
	assert.Equal(t, "new", v.Status)
	assert.Equal(t, "Ayşe Yılmaz", v.CustomerName)
	assert.Equal(t, 4, s.store.Len())
}

func TestCreateMessage_Errors(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"empty body", "", http.StatusBadRequest, CodeInvalidJSON},
		{"malformed", "{", http.StatusBadRequest, CodeInvalidJSON},
		{"unknown field", `{"body":"x","priority":1}`, http.StatusBadRequest, CodeInvalidJSON},
		{"blank body", CreateMessageRequest{Body: " "}, http.StatusBadRequest, CodeValidation},
		{"unknown tag", CreateMessageRequest{Body: "x", Tags: []string{"ghost"}}, http.StatusNotFound, CodeNotFound},
		{"duplicate id", CreateMessageRequest{ID: "m1", Body: "x"}, http.StatusConflict, CodeConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/boards/brand/messages", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestGetMessage(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/boards/brand/messages/m2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mehmet Demir", decode[models.MessageView](t, rec).CustomerName)

	rec = s.do(t, http.MethodGet, "/boards/brand/messages/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMoveMessage(t *testing.T) {
	s := newTestServer(t)
	index := 0

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m2/move", MoveRequest{TargetStatus: "sold", TargetIndex: &index})

	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[models.MessageView](t, rec)
	assert.Equal(t, "sold", v.Status)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, []string{"m2", "m3"}, s.store.Pipeline().Bucket("sold"))
}

func TestMoveMessage_WithoutIndexAppends(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m1/move", `{"targetStatus":"sold"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"m3", "m1"}, s.store.Pipeline().Bucket("sold"))
}

func TestMoveMessage_InvalidState(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m1/move", MoveRequest{TargetStatus: "archived"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	detail := decode[ErrorResponse](t, rec).Error
	assert.Equal(t, CodeInvalidState, detail.Code)
	assert.Equal(t, []string{"new", "inProgress", "appointment", "completed", "sold"}, detail.Allowed)
}

func TestMoveMessage_MismatchedID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m1/move", MoveRequest{MessageID: "m2", TargetStatus: "sold"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, errorCode(t, rec))
}

func TestToggleMessageTag(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m1/tags", ToggleTagRequest{TagID: "vip"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TagSet{"vip"}, decode[models.MessageView](t, rec).Tags)

	rec = s.do(t, http.MethodPost, "/boards/brand/messages/m1/tags", ToggleTagRequest{TagID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/boards/brand/messages/m1/tags", ToggleTagRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppendResponse_RendersAndTransitions(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m1/responses", AppendResponseRequest{
		Text:   "Merhaba {customer_name}, {campaign_name} siparişiniz yolda. {phone}",
		Author: "agent",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[models.MessageView](t, rec)
	assert.Equal(t, "inProgress", v.Status)
	require.Len(t, v.Responses, 1)
	assert.Equal(t, "Merhaba Ayşe Yılmaz, Bahar İndirimi siparişiniz yolda. +905551112233", v.Responses[0].Text)
	assert.Equal(t, "agent", v.Responses[0].Author)
}

func TestAppendResponse_Blank(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m1/responses", AppendResponseRequest{Text: "  "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, errorCode(t, rec))
}

func TestPreviewResponse(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/boards/brand/messages/m2/responses/preview", AppendResponseRequest{Text: "Sayın {customer_name}"})

	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[PreviewResponse](t, rec)
	assert.Equal(t, "Sayın Mehmet Demir", preview.Text)
	assert.Equal(t, []string{"{customer_name}"}, preview.Placeholders)

	// Nothing is stored
	got, err := s.store.Get(context.Background(), "m2")
	require.NoError(t, err)
	assert.Empty(t, got.Responses)

	rec = s.do(t, http.MethodPost, "/boards/brand/messages/m2/responses/preview", AppendResponseRequest{Text: "{coupon}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/customers?segment=Basic", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[CustomerListResponse](t, rec)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, "c2", list.Customers[0].ID)

	rec = s.do(t, http.MethodGet, "/customers/c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ayşe Yılmaz", decode[models.Customer](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/customers/c9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/customers?segment=Gold", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleCustomerTag(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/customers/c2/tags", CustomerTagRequest{TagID: "vip"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.Customer](t, rec).Tags)
}

func TestTags(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/tags", models.Tag{ID: "urgent", DisplayName: "Acil"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, s.tags.Calls["Create"])

	rec = s.do(t, http.MethodGet, "/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tags := decode[[]models.Tag](t, rec)
	assert.Len(t, tags, 3)

	rec = s.do(t, http.MethodPost, "/tags", models.Tag{ID: "vip", DisplayName: "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, s.tags.Calls["Create"])

	rec = s.do(t, http.MethodPost, "/tags", models.Tag{ID: "nameless"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTags_StoreDuplicateIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.tags.CreateFunc = func(ctx context.Context, tag *models.Tag) error {
		return repository.ErrDuplicate
	}

	rec := s.do(t, http.MethodPost, "/tags", models.Tag{ID: "urgent", DisplayName: "Acil"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTags_StoreFailureIsInternal(t *testing.T) {
	s := newTestServer(t)
	s.tags.CreateFunc = func(ctx context.Context, tag *models.Tag) error {
		return errors.New("connection reset")
	}

	rec := s.do(t, http.MethodPost, "/tags", models.Tag{ID: "urgent", DisplayName: "Acil"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternal, errorCode(t, rec))
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/tags", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	checker := service.NewHealthChecker(nil, "", nil, "test")
	router := NewRouter(RouterConfig{Health: NewHealthHandler(checker), Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, service.StatusUnhealthy, decode[service.HealthStatus](t, rec).Status)
}
