package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appctx "columbarium/internal/core/context"
	"columbarium/internal/domain/auth"
	v1 "columbarium/internal/infrastructure/http/v1"
	"columbarium/internal/testkit"
	"columbarium/pkg/logger"
)

type api struct {
	t      *testing.T
	router *gin.Engine
	env    *testkit.Env
	tokens map[string]string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	env := testkit.New()

	cfg := auth.DefaultServiceConfig()
	cfg.BcryptCost = bcrypt.MinCost
	authSvc := auth.NewService(env.Store.Users(), env.Store, auth.NewJWTService(auth.DefaultJWTConfig("router-secret")), cfg)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       logger.Nop(),
		JWTValidator: authSvc.JWT(),
		Services: v1.Services{
			Auth:          authSvc,
			Niches:        env.Niches,
			Customers:     env.Customers,
			Beneficiaries: env.Beneficiaries,
			Sales:         env.Sales,
			Payments:      env.Payments,
			Maintenance:   env.Maintenance,
			Successions:   env.Successions,
		},
	})

	a := &api{t: t, router: router, env: env, tokens: map[string]string{}}
	for _, role := range []string{appctx.RoleAdmin, appctx.RoleSeller, appctx.RoleViewer} {
		_, err := authSvc.CreateUser(env.Ctx(), auth.CreateUserRequest{
			Username: role + "-user", Password: "password-" + role, Role: role,
		})
		require.NoError(t, err)

		rec := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
			"username": role + "-user", "password": "password-" + role,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Token struct {
				AccessToken string `json:"accessToken"`
			} `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		a.tokens[role] = resp.Token.AccessToken
	}
	return a
}

func (a *api) do(method, path, role string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[role])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_RequiresToken(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/niches", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])

	rec = a.do(http.MethodGet, "/api/v1/niches", appctx.RoleViewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RoleMatrix(t *testing.T) {
	a := newAPI(t)
	niche := map[string]any{"module": "A", "section": "1", "row": 1, "number": 1, "type": "wood", "price": "25000"}

	rec := a.do(http.MethodPost, "/api/v1/niches", appctx.RoleSeller, niche)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/customers", appctx.RoleViewer, map[string]any{
		"firstName": "Laura", "lastName": "Gomez", "phone": "5512345678",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/niches", appctx.RoleAdmin, niche)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "A-1-1-1", decode(t, rec)["code"])
}

func TestRouter_ValidationErrorsNameFields(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/api/v1/sales", appctx.RoleSeller, map[string]any{"nicheId": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	fields := body["details"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "uuid", fields["nicheID"])
	assert.Equal(t, "required", fields["customerID"])

	rec = a.do(http.MethodGet, "/api/v1/sales/not-a-uuid", appctx.RoleViewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SaleLifecycle(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/api/v1/niches", appctx.RoleAdmin, map[string]any{
		"module": "B", "section": "2", "row": 3, "number": 4, "type": "marble", "price": "35000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	nicheID := decode(t, rec)["id"].(string)

	rec = a.do(http.MethodPost, "/api/v1/customers", appctx.RoleSeller, map[string]any{
		"firstName": "Laura", "lastName": "Gomez", "phone": "5512345678",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customerID := decode(t, rec)["id"].(string)

	rec = a.do(http.MethodPost, "/api/v1/sales", appctx.RoleSeller, map[string]any{
		"nicheId": nicheID, "customerId": customerID, "totalAmount": "35000", "downPayment": "5000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_BENEFICIARIES", decode(t, rec)["code"])

	rec = a.do(http.MethodPut, "/api/v1/niches/"+nicheID+"/beneficiaries", appctx.RoleSeller, map[string]any{
		"customerId": customerID,
		"beneficiaries": []map[string]any{
			{"name": "Maria Gomez", "relationship": "esposa", "order": 1},
			{"name": "Juan Gomez", "relationship": "hijo", "order": 2},
			{"name": "Ana Gomez", "relationship": "hija", "order": 3},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/sales", appctx.RoleSeller, map[string]any{
		"nicheId": nicheID, "customerId": customerID, "totalAmount": "35000", "downPayment": "5000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	sale := created["sale"].(map[string]any)
	saleID := sale["id"].(string)
	assert.Len(t, sale["amortizationTable"], 18)
	assert.Equal(t, "down_payment", created["downPayment"].(map[string]any)["concept"])

	rec = a.do(http.MethodGet, "/api/v1/niches/"+nicheID, appctx.RoleViewer, nil)
	assert.Equal(t, "sold", decode(t, rec)["status"])

	rec = a.do(http.MethodPost, "/api/v1/sales/"+saleID+"/payment", appctx.RoleSeller, map[string]any{
		"amount": "3000", "method": "cash", "paymentMode": "free",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paid := decode(t, rec)
	assert.Equal(t, "monthly_payment", paid["payment"].(map[string]any)["concept"])
	assert.NotEmpty(t, paid["distribution"].(map[string]any)["lines"])

	rec = a.do(http.MethodGet, "/api/v1/sales/"+saleID+"/payments", appctx.RoleViewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = a.do(http.MethodPost, "/api/v1/sales/"+saleID+"/cancel", appctx.RoleSeller, map[string]any{
		"reason": "customer request for refund", "refundAmount": "4000", "refundMethod": "transfer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode(t, rec)
	assert.Equal(t, "cancelled", cancelled["sale"].(map[string]any)["status"])
	assert.NotNil(t, cancelled["refund"])

	rec = a.do(http.MethodPost, "/api/v1/sales/"+saleID+"/cancel", appctx.RoleSeller, map[string]any{
		"reason": "second cancellation attempt",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SALE_ALREADY_CANCELLED", decode(t, rec)["code"])

	rec = a.do(http.MethodGet, "/api/v1/niches/"+nicheID, appctx.RoleViewer, nil)
	assert.Equal(t, "available", decode(t, rec)["status"])
}

func TestRouter_ManualTransferIsAdminOnly(t *testing.T) {
	a := newAPI(t)
	n, _, _ := a.env.Sold(t)
	other := a.env.Customer(t, "Rosa", "Diaz")

	body := map[string]any{"nicheId": n.ID.String(), "newOwnerId": other.ID.String(), "reason": "family agreement"}
	rec := a.do(http.MethodPost, "/api/v1/succession/transfer", appctx.RoleSeller, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/succession/transfer", appctx.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, other.ID.String(), resp["newOwner"].(map[string]any)["id"])

	rec = a.do(http.MethodGet, "/api/v1/niches/"+n.ID.String()+"/successions", appctx.RoleViewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])
}

func TestRouter_PaymentUsesSpecificInstallment(t *testing.T) {
	a := newAPI(t)
	_, _, s := a.env.Sold(t)

	rec := a.do(http.MethodPost, "/api/v1/sales/"+s.ID.String()+"/payment", appctx.RoleSeller, map[string]any{
		"amount": "500", "method": "card", "paymentMode": "specific", "specificPaymentNumber": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	paid := resp["payment"].(map[string]any)
	assert.Equal(t, "card", paid["method"])
	details := paid["details"].(map[string]any)
	assert.Equal(t, "specific", details["paymentMode"])
	assert.EqualValues(t, 5, details["specificPaymentNumber"])

	lines := resp["distribution"].(map[string]any)["lines"].([]any)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 5, lines[0].(map[string]any)["installmentNumber"])

	rec = a.do(http.MethodPost, "/api/v1/sales/"+s.ID.String()+"/payment", appctx.RoleSeller, map[string]any{
		"amount": "500", "method": "cheque",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["details"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "oneof", fields["method"])
}

func TestRouter_CancelRejectsShortReason(t *testing.T) {
	a := newAPI(t)
	_, _, s := a.env.Sold(t)
	path := "/api/v1/sales/" + s.ID.String() + "/cancel"

	for _, reason := range []string{"too short", "   padded   "} {
		rec := a.do(http.MethodPost, path, appctx.RoleSeller, map[string]any{"reason": reason})
		require.Equal(t, http.StatusBadRequest, rec.Code, reason)
		body := decode(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", body["code"], reason)
		fields := body["details"].(map[string]any)["fields"].(map[string]any)
		assert.Equal(t, "min", fields["reason"], reason)
	}

	rec := a.do(http.MethodGet, "/api/v1/sales/"+s.ID.String(), appctx.RoleViewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", decode(t, rec)["status"])
}

func TestRouter_InventoryAdministration(t *testing.T) {
	a := newAPI(t)
	sold, owner, _ := a.env.Sold(t)
	free := a.env.Niche(t, "12000")
	other := a.env.Niche(t, "12000")

	rec := a.do(http.MethodPatch, "/api/v1/niches/"+free.ID.String()+"/price", appctx.RoleSeller, map[string]any{"price": "14000"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPatch, "/api/v1/niches/"+free.ID.String()+"/price", appctx.RoleAdmin, map[string]any{"price": "14000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "14000", decode(t, rec)["price"])

	rec = a.do(http.MethodPatch, "/api/v1/niches/"+free.ID.String()+"/price", appctx.RoleAdmin, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decode(t, rec)["details"].(map[string]any)["fields"].(map[string]any)["price"])

	rec = a.do(http.MethodPatch, "/api/v1/niches/"+sold.ID.String()+"/price", appctx.RoleAdmin, map[string]any{"price": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", decode(t, rec)["code"])

	rec = a.do(http.MethodPatch, "/api/v1/niches/"+free.ID.String()+"/material", appctx.RoleAdmin, map[string]any{"type": "wood"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "wood", decode(t, rec)["type"])

	rec = a.do(http.MethodPost, "/api/v1/niches/bulk-material", appctx.RoleAdmin, map[string]any{
		"nicheIds": []string{free.ID.String(), other.ID.String()}, "type": "special",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = a.do(http.MethodPost, "/api/v1/niches/bulk-material", appctx.RoleAdmin, map[string]any{
		"nicheIds": []string{free.ID.String(), sold.ID.String()}, "type": "wood",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/niches/stats", appctx.RoleViewer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode(t, rec)
	assert.EqualValues(t, 3, stats["total"])
	assert.EqualValues(t, 1, stats["byStatus"].(map[string]any)["sold"])
	assert.EqualValues(t, 2, stats["byType"].(map[string]any)["special"])

	_, err := a.env.Customers.Deactivate(a.env.Ctx(), owner.ID)
	require.NoError(t, err)
	rec = a.do(http.MethodPatch, "/api/v1/customers/"+owner.ID.String()+"/activate", appctx.RoleViewer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPatch, "/api/v1/customers/"+owner.ID.String()+"/activate", appctx.RoleSeller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "active", decode(t, rec)["status"])
}
