package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/services"
)

type stubItemService struct {
	item     *services.CompleteItem
	etag     string
	err      error
	ifMatch  string
	itemList []services.CompleteItem
}

func (s *stubItemService) ListPublic(ctx context.Context, skip, limit int) ([]services.CompleteItem, error) {
	return s.itemList, s.err
}

func (s *stubItemService) GetPublic(ctx context.Context, itemID uuid.UUID) (*services.CompleteItem, string, error) {
	return s.item, s.etag, s.err
}

func (s *stubItemService) ListMine(ctx context.Context, skip, limit int) ([]services.CompleteItem, error) {
	return s.itemList, s.err
}

func (s *stubItemService) Update(ctx context.Context, itemID uuid.UUID, ifMatch string, body itemsvc.ItemUpdate) (*itemsvc.ItemRead, string, error) {
	s.ifMatch = ifMatch
	if s.err != nil {
		return nil, "", s.err
	}
	return &s.item.ItemRead, s.etag, nil
}

func (s *stubItemService) Delete(ctx context.Context, itemID uuid.UUID) error {
	return s.err
}

func (s *stubItemService) Categories(ctx context.Context) ([]string, error) {
	return []string{"tools"}, s.err
}

type stubJobService struct {
	job *itemsvc.JobRead
	err error
}

func (s *stubJobService) Submit(ctx context.Context, body itemsvc.ItemCreate) (*itemsvc.JobRead, error) {
	return s.job, s.err
}

func (s *stubJobService) Poll(ctx context.Context, jobID uuid.UUID) (*itemsvc.JobRead, error) {
	return s.job, s.err
}

func newItemRouter(itemSvc services.ItemService, jobSvc services.JobService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewItemHandler(itemSvc, jobSvc)
	router := gin.New()
	router.GET("/items/:id", handler.Get)
	router.POST("/me/items", handler.Submit)
	router.PATCH("/me/items/:id", handler.Update)
	return router
}

func completeItemFixture() *services.CompleteItem {
	return &services.CompleteItem{
		ItemRead: itemsvc.ItemRead{
			ItemID:          uuid.New(),
			Title:           "bike",
			Condition:       itemsvc.ConditionGood,
			TransactionType: itemsvc.TransactionSale,
			Price:           25,
			UpdatedAt:       time.Now(),
		},
	}
}

func TestGetItemSetsETagHeader(t *testing.T) {
	stub := &stubItemService{item: completeItemFixture(), etag: `"abc123"`}
	router := newItemRouter(stub, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/"+stub.item.ItemID.String(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != `"abc123"` {
		t.Fatalf("etag header: want=%q got=%q", `"abc123"`, got)
	}
}

func TestGetItemInvalidUUIDIs422(t *testing.T) {
	router := newItemRouter(&stubItemService{}, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: want=422 got=%d", w.Code)
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != apierr.CodeValidation {
		t.Fatalf("code: want=%s got=%s", apierr.CodeValidation, envelope.Error.Code)
	}
}

func TestGetItemErrorTaxonomyMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apierr.NotFound(fmt.Errorf("gone")), http.StatusNotFound, apierr.CodeNotFound},
		{"upstream down", apierr.UpstreamUnavailable(fmt.Errorf("down")), http.StatusBadGateway, apierr.CodeUpstreamUnavailable},
		{"inconsistency", apierr.InternalInconsistency("item_link_failed", fmt.Errorf("x")), http.StatusInternalServerError, "item_link_failed"},
		{"unclassified", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newItemRouter(&stubItemService{err: tc.err}, &stubJobService{})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/items/"+uuid.NewString(), nil)
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status: want=%d got=%d", tc.wantStatus, w.Code)
			}
			var envelope ErrorEnvelope
			if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if envelope.Error.Code != tc.wantCode {
				t.Fatalf("code: want=%s got=%s", tc.wantCode, envelope.Error.Code)
			}
		})
	}
}

func TestUnclassifiedErrorMessageNotLeaked(t *testing.T) {
	router := newItemRouter(&stubItemService{err: fmt.Errorf("pq: connection reset by peer")}, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", w.Code)
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Message != "internal error" {
		t.Fatalf("message: want=%q got=%q", "internal error", envelope.Error.Message)
	}
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Fatalf("driver error leaked to client: %s", w.Body.String())
	}
}

func TestSubmitReturns202WithJob(t *testing.T) {
	jobID := uuid.New()
	stub := &stubJobService{job: &itemsvc.JobRead{JobID: jobID, Status: itemsvc.JobPending}}
	router := newItemRouter(&stubItemService{}, stub)

	w := httptest.NewRecorder()
	body := `{"title":"bike","condition":"GOOD","transaction_type":"SALE","price":25}`
	req := httptest.NewRequest(http.MethodPost, "/me/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status: want=202 got=%d", w.Code)
	}
	var job itemsvc.JobRead
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.JobID != jobID {
		t.Fatalf("job id: want=%s got=%s", jobID, job.JobID)
	}
}

func TestUpdatePassesIfMatchThrough(t *testing.T) {
	stub := &stubItemService{item: completeItemFixture(), etag: `"next"`}
	router := newItemRouter(stub, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/me/items/"+stub.item.ItemID.String(), strings.NewReader(`{"title":"new"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", `"current"`)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	if stub.ifMatch != `"current"` {
		t.Fatalf("if-match: want=%q got=%q", `"current"`, stub.ifMatch)
	}
	if got := w.Header().Get("ETag"); got != `"next"` {
		t.Fatalf("fresh etag: want=%q got=%q", `"next"`, got)
	}
}
