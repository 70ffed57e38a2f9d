package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	path           string
	idempotencyKey string
	form           map[string]string
}

func fakeStripe(t *testing.T, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var got []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		got = append(got, recordedRequest{
			path:           r.URL.Path,
			idempotencyKey: r.Header.Get("Idempotency-Key"),
			form:           form,
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestCreateTransfer(t *testing.T) {
	srv, got := fakeStripe(t, `{"id":"tr_123","object":"transfer"}`)
	c := NewClient("sk_test_123", WithBackendURL(srv.URL), WithMaxRetries(0))

	id, err := c.CreateTransfer(context.Background(), TransferRequest{
		AmountMinor:    9000,
		Currency:       "USD",
		Destination:    "acct_1",
		IdempotencyKey: "po_1",
		Metadata:       map[string]string{MetaPayoutID: "po_1"},
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if id != "tr_123" {
		t.Fatalf("expected tr_123, got %s", id)
	}
	if len(*got) != 1 {
		t.Fatalf("expected one request, got %d", len(*got))
	}
	req := (*got)[0]
	if req.path != "/v1/transfers" || req.idempotencyKey != "po_1" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.form["amount"] != "9000" || req.form["currency"] != "usd" || req.form["destination"] != "acct_1" ||
		req.form["metadata[payout_id]"] != "po_1" {
		t.Fatalf("unexpected form %v", req.form)
	}
}

func TestCreateRefund(t *testing.T) {
	srv, got := fakeStripe(t, `{"id":"re_123","object":"refund"}`)
	c := NewClient("sk_test_123", WithBackendURL(srv.URL), WithMaxRetries(0))

	id, err := c.CreateRefund(context.Background(), RefundRequest{
		PaymentIntentID: "pi_1",
		AmountMinor:     10000,
		IdempotencyKey:  "pi_1:refund",
	})
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	req := (*got)[0]
	if id != "re_123" || req.path != "/v1/refunds" || req.idempotencyKey != "pi_1:refund" {
		t.Fatalf("unexpected refund call id=%s req=%+v", id, req)
	}
	if req.form["payment_intent"] != "pi_1" || req.form["amount"] != "10000" {
		t.Fatalf("unexpected form %v", req.form)
	}
}
