package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/internal/authz"
	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

type stubCatalogService struct {
	lastActor  authz.Actor
	lastCreate catalog.CreateProductInput
	lastList   catalog.ListProductsInput
	deleted    uuid.UUID
	err        error
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, actor authz.Actor, input catalog.CreateProductInput) (*catalog.ProductDTO, error) {
	s.lastActor = actor
	s.lastCreate = input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: uuid.New(), FarmerID: actor.UserID, Name: input.Name, Price: input.Price.StringFixed(2), Stock: input.Stock, IsActive: true}, nil
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, actor authz.Actor, productID uuid.UUID, input catalog.UpdateProductInput) (*catalog.ProductDTO, error) {
	s.lastActor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: productID}, nil
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, actor authz.Actor, productID uuid.UUID) error {
	s.lastActor = actor
	s.deleted = productID
	return s.err
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.ProductDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: productID}, nil
}

func (s *stubCatalogService) ListProducts(ctx context.Context, input catalog.ListProductsInput) (*pagination.Page[catalog.ProductDTO], error) {
	s.lastList = input
	return &pagination.Page[catalog.ProductDTO]{Items: []catalog.ProductDTO{}}, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func withActor(ctx context.Context, id uuid.UUID, role enums.UserRole) context.Context {
	return middleware.WithActor(ctx, authz.Actor{UserID: id, Role: role})
}

func withProductParam(r *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("productId", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCreateProduct(t *testing.T) {
	svc := &stubCatalogService{}
	farmerID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Carrots","price":"12.5","stock":40}`))
	req = req.WithContext(withActor(req.Context(), farmerID, enums.UserRoleFarmer))
	rec := httptest.NewRecorder()
	CreateProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastActor.UserID != farmerID || svc.lastActor.Role != enums.UserRoleFarmer {
		t.Fatalf("unexpected actor %+v", svc.lastActor)
	}
	if !svc.lastCreate.Price.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected price %s", svc.lastCreate.Price)
	}

	var envelope struct {
		Data catalog.ProductDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Price != "12.50" {
		t.Fatalf("expected formatted price, got %s", envelope.Data.Price)
	}
}

func TestCreateProductRequiresActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Carrots","price":"1","stock":1}`))
	rec := httptest.NewRecorder()
	CreateProduct(&stubCatalogService{}, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestUpdateProductForbidden(t *testing.T) {
	svc := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeForbidden, "only the owning farmer can modify this product")}
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/products/"+productID.String(), strings.NewReader(`{"stock":3}`))
	req = withProductParam(req, productID.String())
	req = req.WithContext(withActor(req.Context(), uuid.New(), enums.UserRoleFarmer))
	rec := httptest.NewRecorder()
	UpdateProduct(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestDeleteProduct(t *testing.T) {
	farmerID := uuid.New()
	productID := uuid.New()

	t.Run("invalid product id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/nope", nil)
		req = withProductParam(req, "not-a-uuid")
		req = req.WithContext(withActor(req.Context(), farmerID, enums.UserRoleFarmer))
		rec := httptest.NewRecorder()
		DeleteProduct(&stubCatalogService{}, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		svc := &stubCatalogService{}
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID.String(), nil)
		req = withProductParam(req, productID.String())
		req = req.WithContext(withActor(req.Context(), farmerID, enums.UserRoleFarmer))
		rec := httptest.NewRecorder()
		DeleteProduct(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 got %d", rec.Code)
		}
		if svc.deleted != productID {
			t.Fatalf("expected %s deleted, got %s", productID, svc.deleted)
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID.String(), nil)
		req = withProductParam(req, productID.String())
		req = req.WithContext(withActor(req.Context(), farmerID, enums.UserRoleFarmer))
		rec := httptest.NewRecorder()
		DeleteProduct(svc, testLogger()).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 got %d", rec.Code)
		}
	})
}

func TestListProductsParsesFilters(t *testing.T) {
	svc := &stubCatalogService{}
	farmerID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=5&q=%20carrot%20&farmer_id="+farmerID.String(), nil)
	rec := httptest.NewRecorder()
	ListProducts(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastList.Pagination.Limit != 5 || svc.lastList.Query != "carrot" {
		t.Fatalf("unexpected list input %+v", svc.lastList)
	}
	if svc.lastList.FarmerID == nil || *svc.lastList.FarmerID != farmerID {
		t.Fatalf("expected farmer filter")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products?farmer_id=bad", nil)
	rec = httptest.NewRecorder()
	ListProducts(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
