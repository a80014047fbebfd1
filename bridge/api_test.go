package bridge_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alovak/cardflow-bridge/bridge"
	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/sandbox"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	p := sandbox.New(sandbox.WithClock(func() time.Time {
		return time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	}))
	api := bridge.NewAPI(bridge.NewOrchestrator(p, bridge.DefaultConfig()), bridge.NewQueueSurface())

	router := chi.NewRouter()
	api.AppendRoutes(router)
	return router
}

func call(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func TestAPI(t *testing.T) {
	router := newTestRouter(t)

	t.Run("charge before initialize", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/charge", nil)
		require.Equal(t, http.StatusConflict, w.Code)

		resp := models.ErrorResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "PRECONDITION_FAILED", resp.Code)
	})

	t.Run("initialize", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/initialize", models.InitializeRequest{PublicKey: "pk_test_xxx"})
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"initialized":true}`, w.Body.String())
	})

	t.Run("add card with missing cvv", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/card", `{"cardNumber":"4084084084084081","expiryMonth":"12","expiryYear":"25"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("add card", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/card", testCard)
		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("validate card", func(t *testing.T) {
		w := call(t, router, http.MethodGet, "/card/validation", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"is_valid":true}`, w.Body.String())
	})

	t.Run("card type", func(t *testing.T) {
		w := call(t, router, http.MethodGet, "/card/type", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"card_type":"Visa"}`, w.Body.String())
	})

	t.Run("metadata with reserved key", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/charge/metadata", map[string]string{
			"order_id":      "42",
			"custom_fields": "x",
		})
		require.Equal(t, http.StatusInternalServerError, w.Code)

		resp := models.ErrorResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "INTERNAL_ERROR", resp.Code)
		require.Equal(t, []string{"order_id"}, resp.Batch.Applied)
		require.Contains(t, resp.Batch.Failed, "custom_fields")
	})

	t.Run("custom fields keep document order", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/charge/custom-fields", `{"Invoice":"INV-1","Cart":"3 items","Agent":"web"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"applied":["Invoice","Cart","Agent"]}`, w.Body.String())
	})

	t.Run("amount and email", func(t *testing.T) {
		w := call(t, router, http.MethodPut, "/charge/amount", models.AmountRequest{Amount: "10050"})
		require.Equal(t, http.StatusNoContent, w.Code)

		w = call(t, router, http.MethodPut, "/charge/email", models.EmailRequest{Email: "customer@example.com"})
		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("session is masked", func(t *testing.T) {
		w := call(t, router, http.MethodGet, "/session", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotContains(t, w.Body.String(), "4084084084084081")
		require.NotContains(t, w.Body.String(), `"408"`)

		view := models.SessionView{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		require.Equal(t, "charge_staged", view.State)
		require.Equal(t, "408408******4081", view.Card.Number)
		require.Equal(t, "4081", view.Card.Last4)
		require.Equal(t, "12/25", view.Card.Expiry)
		require.Equal(t, "100.50 NGN", view.Charge.Display)
		require.Equal(t, models.AuthorizationPathEmailAmount, view.Charge.Path)
	})

	t.Run("charge", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/charge", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := models.ChargeResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, models.ChargeStatusSucceeded, resp.Status)
		require.NotEmpty(t, resp.Reference)

		w = call(t, router, http.MethodGet, "/charge/result", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPI_DeclinedCharge(t *testing.T) {
	router := newTestRouter(t)

	call(t, router, http.MethodPost, "/initialize", models.InitializeRequest{PublicKey: "pk_test_xxx"})
	card := testCard
	card.CardNumber = sandbox.CardDeclined
	require.Equal(t, http.StatusNoContent, call(t, router, http.MethodPost, "/card", card).Code)
	require.Equal(t, http.StatusNoContent, call(t, router, http.MethodPut, "/charge/access-code", models.AccessCodeRequest{AccessCode: "ac_123"}).Code)

	w := call(t, router, http.MethodPost, "/charge", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	resp := models.ErrorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "UPSTREAM_ERROR", resp.Code)
	require.Equal(t, "Declined", resp.Message)
	require.NotEmpty(t, resp.Reference)
}

func TestAPI_OTPChallenge(t *testing.T) {
	router := newTestRouter(t)

	call(t, router, http.MethodPost, "/initialize", models.InitializeRequest{PublicKey: "pk_test_xxx"})
	card := testCard
	card.CardNumber = sandbox.CardOTP
	require.Equal(t, http.StatusNoContent, call(t, router, http.MethodPost, "/card", card).Code)
	require.Equal(t, http.StatusNoContent, call(t, router, http.MethodPut, "/charge/amount", models.AmountRequest{Amount: "5000"}).Code)
	require.Equal(t, http.StatusNoContent, call(t, router, http.MethodPut, "/charge/email", models.EmailRequest{Email: "customer@example.com"}).Code)

	w := call(t, router, http.MethodPost, "/charge", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	charge := models.ChargeResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &charge))
	require.Equal(t, models.ChargeStatusAwaitingValidation, charge.Status)

	var challenge models.Challenge
	require.Eventually(t, func() bool {
		w := call(t, router, http.MethodGet, "/charge/challenge", nil)
		if w.Code != http.StatusOK {
			return false
		}
		return json.Unmarshal(w.Body.Bytes(), &challenge) == nil
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, charge.Reference, challenge.Reference)
	require.Equal(t, models.ChallengeOTP, challenge.Kind)

	w = call(t, router, http.MethodPost, "/charge/challenge", models.ChallengeAnswer{Reference: "other", Response: sandbox.DefaultOTP})
	require.Equal(t, http.StatusConflict, w.Code)

	w = call(t, router, http.MethodPost, "/charge/challenge", models.ChallengeAnswer{Reference: challenge.Reference, Response: sandbox.DefaultOTP})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = call(t, router, http.MethodGet, "/charge/result", nil)
	require.Equal(t, http.StatusOK, w.Code)

	result := models.ChargeResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, models.ChargeStatusSucceeded, result.Status)
	require.Equal(t, charge.Reference, result.Reference)
}
