package refund_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/petcare/petcare-api/internal/domain/refund"
	"github.com/petcare/petcare-api/internal/domain/wallet"
)

func TestCancelHandler(t *testing.T) {
	f := newFixture(t)
	f.settle(t, "pi_1", 10000)
	router := refund.NewHandler(f.svc, f.wallets).Routes()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("wallet refund requires payer", func(t *testing.T) {
		rec := post(`{"payment_intent_id":"pi_1","refund_to":"wallet"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("reverses and refunds to the payer wallet", func(t *testing.T) {
		rec := post(`{"payment_intent_id":"pi_1","refund_to":"wallet","payer_user_id":"usr_9","currency":"usd"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		payer, err := f.wallets.FindByOwner(context.Background(), wallet.OwnerUser, "usr_9", "USD")
		if err != nil {
			t.Fatalf("payer wallet: %v", err)
		}
		if got := f.store.Balance(payer.ID); got != 10000 {
			t.Fatalf("expected payer balance 10000, got %d", got)
		}
	})

	t.Run("replay as external keeps the wallet refund", func(t *testing.T) {
		rec := post(`{"payment_intent_id":"pi_1","refund_to":"external"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Data refund.Result `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Data.AlreadyReversed || resp.Data.RefundTo != refund.TargetWallet || len(f.refunder.calls) != 0 {
			t.Fatalf("expected wallet refund to stand, got %+v calls=%d", resp.Data, len(f.refunder.calls))
		}
	})

	t.Run("provider failure answers 502", func(t *testing.T) {
		f.settle(t, "pi_2", 5000)
		f.refunder.err = errors.New("card declined")
		defer func() { f.refunder.err = nil }()

		rec := post(`{"payment_intent_id":"pi_2","refund_to":"external"}`)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("stale cancellation answers 200", func(t *testing.T) {
		rec := post(`{"payment_intent_id":"pi_unknown"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Data refund.Result `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Data.Stale {
			t.Fatalf("expected stale result, got %+v", resp.Data)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		if rec := post(`{"payment_intent_id":"pi_1","refund_to":"cash"}`); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}
